package messages

import "time"

// Message type tags
const (
	TypeText     = "TEXT"
	TypeImage    = "IMAGE"
	TypeAudio    = "AUDIO"
	TypeLocation = "LOCATION"
	TypeDocument = "DOCUMENT"
)

var validTypes = map[string]bool{
	TypeText:     true,
	TypeImage:    true,
	TypeAudio:    true,
	TypeLocation: true,
	TypeDocument: true,
}

// Message is a direct message between two accounts. Sender and receiver both
// reference existing users (enforced by FK).
type Message struct {
	ID            int       `json:"id"`
	SenderID      int       `json:"sender_id"`
	ReceiverID    int       `json:"receiver_id"`
	Body          *string   `json:"body,omitempty"`
	Type          string    `json:"type"`
	AttachmentURL *string   `json:"attachment_url,omitempty"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
