package activities

import (
	"errors"
	"time"

	"traveo-backend/media"
)

// Validation and persistence failures surfaced to the HTTP layer.
var (
	ErrValidation        = errors.New("invalid activity data")
	ErrPersistenceFailed = errors.New("could not persist activity")
	ErrNotFound          = errors.New("activity not found")
)

type Activity struct {
	ID           int            `json:"id"`
	CreatorID    int            `json:"creator_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Lng          *float64       `json:"lng,omitempty"`
	Lat          *float64       `json:"lat,omitempty"`
	Photos       []media.Upload `json:"photos"`
	Participants []int          `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
}
