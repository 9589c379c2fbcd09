package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"traveo-backend/entitlement"
	"traveo-backend/login"
	"traveo-backend/media"
	"traveo-backend/migrations"

	"github.com/gin-gonic/gin"
)

// activityCounter reports how many activities a user has created;
// *activities.Repository implements it.
type activityCounter interface {
	CountForCreator(ctx context.Context, userID int) (int, error)
}

type Handler struct {
	uploader media.Uploader
	counter  activityCounter
}

func NewHandler(up media.Uploader, counter activityCounter) *Handler {
	return &Handler{uploader: up, counter: counter}
}

// RegisterRoutes registers profile endpoints
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/user-detail/:id", h.getProfile)
	r.POST("/user-detail/:id", h.updateProfile)
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

func (h *Handler) getProfile(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}
	resp := userToMap(user)
	resp["entitlement"] = entitlementSnapshot(user)
	if h.counter != nil {
		if n, err := h.counter.CountForCreator(c.Request.Context(), user.ID); err == nil {
			resp["activities_created"] = n
		} else {
			log.Printf("[PROFILE][GET] activity count failed id=%d err=%v", user.ID, err)
		}
	}
	log.Printf("[PROFILE][GET] success id=%d email=%s plan=%s", user.ID, user.Email, user.PlanType)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// entitlementSnapshot reports what the evaluator would decide right now, so
// the client can gate its "create activity" button without a second request.
func entitlementSnapshot(u *migrations.User) gin.H {
	snap := gin.H{
		"plan_type":       u.PlanType,
		"single_credits":  u.SingleCredits,
		"free_trial_used": u.FreeTrialUsed,
	}
	if u.PlanEnd != nil {
		snap["plan_end"] = u.PlanEnd.Format(time.RFC3339)
	}
	if tier, err := entitlement.Evaluate(u, time.Now()); err == nil {
		snap["can_create"] = true
		snap["tier"] = string(tier)
	} else {
		snap["can_create"] = false
	}
	return snap
}

func (h *Handler) updateProfile(c *gin.Context) {
	idStr := c.Param("id")
	idParam, _ := strconv.Atoi(idStr)
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}
	if idParam != 0 && idParam != user.ID {
		log.Printf("[PROFILE][POST] id mismatch: param=%d sessionUserID=%d", idParam, user.ID)
		// Continue but log mismatch
	}

	// Is multipart with image?
	ct := c.GetHeader("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, err := c.FormFile("profile_image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image not provided", "code": "image_missing"})
			return
		}
		maxMB := 10
		if envMax := os.Getenv("PROFILE_IMAGE_MAX_MB"); envMax != "" {
			if n, err := strconv.Atoi(envMax); err == nil && n > 0 {
				maxMB = n
			}
		}
		if file.Size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty file", "code": "image_empty"})
			return
		}
		if file.Size > int64(maxMB*1024*1024) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large", "code": "image_too_large", "max_size_mb": maxMB})
			return
		}
		if !allowedImage(file.Filename, file.Header.Get("Content-Type")) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image format", "code": "image_bad_format"})
			return
		}
		if h.uploader == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "media host not configured"})
			return
		}
		url, _, err := h.uploader.Upload(c.Request.Context(), file)
		if err != nil {
			log.Printf("[PROFILE][POST] image upload failed userID=%d: %v", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not upload image", "code": "image_upload_failed"})
			return
		}
		if err := migrations.UpdateUserProfileImage(user.ID, url); err != nil {
			log.Printf("[PROFILE][POST] failed updating DB with image url for userID=%d: %v", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update user"})
			return
		}
		updated := migrations.GetUserByID(user.ID)
		log.Printf("[PROFILE][POST] image updated userID=%d url=%s", user.ID, url)
		c.JSON(http.StatusOK, gin.H{"data": userToMap(updated)})
		return
	}

	// Otherwise JSON body with fields to update
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	firstName := strings.TrimSpace(getString(payload, "first_name"))
	lastName := strings.TrimSpace(getString(payload, "last_name"))
	city := strings.TrimSpace(getString(payload, "city"))
	bio := strings.TrimSpace(getString(payload, "bio"))

	if err := migrations.UpdateUserProfile(user.ID, firstName, lastName, city, bio); err != nil {
		log.Printf("[PROFILE][POST] DB update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update"})
		return
	}
	updated := migrations.GetUserByID(user.ID)
	log.Printf("[PROFILE][POST] JSON update success for userID=%d", user.ID)
	c.JSON(http.StatusOK, gin.H{"data": userToMap(updated)})
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func userToMap(u *migrations.User) map[string]interface{} {
	if u == nil {
		return nil
	}
	return map[string]interface{}{
		"id":            u.ID,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"email":         u.Email,
		"full_name":     u.FirstName + " " + u.LastName,
		"profile_image": u.ProfileImage,
		"city":          u.City,
		"bio":           u.Bio,
		"created_at":    u.CreatedAt.Format(time.RFC3339),
		"updated_at":    u.UpdatedAt.Format(time.RFC3339),
	}
}

// allowedImage accepts jpg/jpeg/png/webp by extension or content type.
func allowedImage(filename, contentType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	}
	return false
}
