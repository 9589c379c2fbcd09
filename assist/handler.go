package assist

import (
	"log"
	"net/http"
	"strings"

	"traveo-backend/login"
	"traveo-backend/migrations"

	"github.com/gin-gonic/gin"
)

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
	ai AIClient
}

func NewHandler(ai AIClient) *Handler {
	return &Handler{ai: ai}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/activities/suggest-description", h.suggest)
}

func (h *Handler) suggest(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body struct {
		Title string `json:"title"`
		City  string `json:"city"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}
	if h.ai == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant not configured"})
		return
	}
	text, err := h.ai.SuggestDescription(c.Request.Context(), body.Title, body.City)
	if err != nil {
		log.Printf("[ASSIST][SUGGEST] failed user_id=%d title=%q err=%v", user.ID, body.Title, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate suggestion"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"description": text}})
}
