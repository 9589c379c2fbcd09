package activities

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"traveo-backend/entitlement"
	"traveo-backend/login"
	"traveo-backend/media"
	"traveo-backend/migrations"

	"github.com/gin-gonic/gin"
)

// currentUser resolves the authenticated account from the bearer token.
// Kept as an indirection so tests can stub the session/user lookup.
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
	svc  *Service
	repo *Repository
}

func NewHandler(svc *Service, repo *Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/activities", h.create)
	r.GET("/activities", h.list)
	r.GET("/activities/:id", h.get)
	r.POST("/activities/:id/join", h.join)
}

func (h *Handler) create(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	in := CreateInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Lat:         c.PostForm("lat"),
		Lng:         c.PostForm("lng"),
		Photos:      photoFiles(c),
	}
	log.Printf("[ACTIVITY][POST] user_id=%d title=%q photos=%d", user.ID, in.Title, len(in.Photos))

	a, err := h.svc.Create(c.Request.Context(), user, in)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, entitlement.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, media.ErrUploadFailed), errors.Is(err, ErrPersistenceFailed):
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": a})
}

// photoFiles normalizes the upload shape clients send: a "photos" field
// (optionally bracketed) or a flat file array under arbitrary field names.
// Always returns a single ordered list.
func photoFiles(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	if files := form.File["photos"]; len(files) > 0 {
		return files
	}
	if files := form.File["photos[]"]; len(files) > 0 {
		return files
	}
	// Flat array fallback: collect every file part in field-name order.
	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)
	var files []*multipart.FileHeader
	for _, name := range names {
		files = append(files, form.File[name]...)
	}
	return files
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a})
}

func (h *Handler) join(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.repo.Join(c.Request.Context(), id, user.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[ACTIVITY][JOIN] activity_id=%d user_id=%d", id, user.ID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
