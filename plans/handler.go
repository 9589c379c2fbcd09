package plans

import (
	"errors"
	"net/http"
	"strings"

	"traveo-backend/login"
	"traveo-backend/migrations"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo   *Repository
	stripe *StripeService
}

func NewHandler(repo *Repository, stripe *StripeService) *Handler {
	return &Handler{repo: repo, stripe: stripe}
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

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/plans", h.getPlans)
	r.POST("/checkout", h.checkout)
	r.GET("/checkout/confirm", h.confirm)
	r.POST("/stripe/webhook", h.webhook)
}

func (h *Handler) getPlans(c *gin.Context) {
	plans, err := h.repo.GetPlans()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plans})
}

// checkout creates a hosted Stripe checkout session for the plan.
// Body: { "plan_id": number }. Response: { "checkout_url", "session_id" }.
func (h *Handler) checkout(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body struct {
		PlanID int `json:"plan_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PlanID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id required"})
		return
	}
	if h.stripe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments not configured"})
		return
	}
	url, sessionID, err := h.stripe.CreateCheckoutSessionWithID(c.Request.Context(), user.ID, body.PlanID)
	if err != nil {
		if errors.Is(err, ErrStripeInvalidAPIKey) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider rejected credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": url, "session_id": sessionID})
}

// confirm is the polling fallback for clients returning from the checkout
// webview before the webhook lands.
func (h *Handler) confirm(c *gin.Context) {
	if h.stripe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments not configured"})
		return
	}
	done, err := h.stripe.ConfirmSession(c.Query("session_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": done})
}

func (h *Handler) webhook(c *gin.Context) {
	if h.stripe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments not configured"})
		return
	}
	if err := h.stripe.HandleWebhook(c.Writer, c.Request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
