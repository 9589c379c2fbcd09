package messages

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"

	"traveo-backend/login"
	"traveo-backend/media"
	"traveo-backend/migrations"

	"github.com/gin-gonic/gin"
)

// store is what the handler needs from persistence; *Repository implements it
// and tests substitute a fake.
type store interface {
	Create(ctx context.Context, m *Message) error
	Conversation(ctx context.Context, userA, userB, limit int) ([]Message, error)
	UnreadCount(ctx context.Context, receiverID int) (int, error)
	MarkConversationRead(ctx context.Context, receiverID, senderID int) error
}

// currentUser resolves the authenticated account from the bearer token.
var currentUser = func(c *gin.Context) *migrations.User {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		return nil
	}
	email, ok := login.GetEmailFromToken(token)
	if !ok {
		return nil
	}
	return migrations.GetUserByEmail(email)
}

// RegisterUserResolver replaces the session/user lookup (tests, tooling).
func RegisterUserResolver(fn func(c *gin.Context) *migrations.User) { currentUser = fn }

type Handler struct {
	store    store
	uploader media.Uploader
}

func NewHandler(s store, up media.Uploader) *Handler {
	return &Handler{store: s, uploader: up}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/messages", h.send)
	r.POST("/messages/attachments", h.uploadAttachment)
	r.GET("/messages/conversation/:user_id", h.conversation)
	r.GET("/messages/unread-count", h.unreadCount)
	r.PUT("/messages/read", h.markRead)
}

type sendPayload struct {
	ReceiverID    int    `json:"receiver_id"`
	Body          string `json:"body"`
	Type          string `json:"type"`
	AttachmentURL string `json:"attachment_url"`
}

func (h *Handler) send(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var p sendPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if p.Type == "" {
		p.Type = TypeText
	}
	if !validTypes[p.Type] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}
	if p.ReceiverID <= 0 || p.ReceiverID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver"})
		return
	}
	if p.Type == TypeText && strings.TrimSpace(p.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required for text messages"})
		return
	}
	if p.Type != TypeText && p.AttachmentURL == "" && p.Type != TypeLocation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attachment_url is required for " + p.Type})
		return
	}

	m := &Message{SenderID: user.ID, ReceiverID: p.ReceiverID, Type: p.Type}
	if p.Body != "" {
		m.Body = &p.Body
	}
	if p.AttachmentURL != "" {
		m.AttachmentURL = &p.AttachmentURL
	}
	if err := h.store.Create(c.Request.Context(), m); err != nil {
		log.Printf("[MESSAGE][SEND] failed sender_id=%d receiver_id=%d err=%v", user.ID, p.ReceiverID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}
	log.Printf("[MESSAGE][SEND] ok id=%d sender_id=%d receiver_id=%d type=%s", m.ID, user.ID, p.ReceiverID, m.Type)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": m})
}

// uploadAttachment hosts a file for a non-text message and returns its URL.
// The client sends the URL back in the subsequent POST /messages. DOCUMENT
// attachments must parse as a PDF before anything is sent to the media host.
func (h *Handler) uploadAttachment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	msgType := c.PostForm("type")
	if msgType == "" {
		msgType = TypeDocument
	}
	if !validTypes[msgType] || msgType == TypeText || msgType == TypeLocation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be IMAGE, AUDIO or DOCUMENT"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if msgType == TypeDocument {
		if err := media.ValidatePDF(file); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media host not configured"})
		return
	}
	url, _, err := h.uploader.Upload(c.Request.Context(), file)
	if err != nil {
		log.Printf("[MESSAGE][ATTACHMENT] upload failed sender_id=%d filename=%s err=%v", user.ID, file.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not upload attachment"})
		return
	}
	log.Printf("[MESSAGE][ATTACHMENT] ok sender_id=%d type=%s filename=%s", user.ID, msgType, file.Filename)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"url": url, "type": msgType}})
}

func (h *Handler) conversation(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	other, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || other <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.store.Conversation(c.Request.Context(), user.ID, other, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

func (h *Handler) unreadCount(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	n, err := h.store.UnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"unread": n}})
}

func (h *Handler) markRead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var p struct {
		SenderID int `json:"sender_id"`
	}
	if err := c.ShouldBindJSON(&p); err != nil || p.SenderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender_id required"})
		return
	}
	if err := h.store.MarkConversationRead(c.Request.Context(), user.ID, p.SenderID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
