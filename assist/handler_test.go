package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"traveo-backend/migrations"

	"github.com/gin-gonic/gin"
)

type mockAI struct {
	text     string
	err      error
	gotTitle string
	gotCity  string
}

func (m *mockAI) SuggestDescription(ctx context.Context, title, city string) (string, error) {
	m.gotTitle, m.gotCity = title, city
	return m.text, m.err
}

func setupRouter(t *testing.T, ai AIClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	prev := currentUser
	RegisterUserResolver(func(c *gin.Context) *migrations.User {
		if c.GetHeader("Authorization") == "Bearer good-token" {
			return &migrations.User{ID: 1}
		}
		return nil
	})
	t.Cleanup(func() { currentUser = prev })
	r := gin.New()
	NewHandler(ai).RegisterRoutes(r)
	return r
}

func post(r *gin.Engine, payload any, token string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/activities/suggest-description", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSuggest_ok(t *testing.T) {
	ai := &mockAI{text: "Wander the old town at dusk. Bring comfortable shoes."}
	r := setupRouter(t, ai)

	w := post(r, map[string]string{"title": "Old town walk", "city": "Cartagena"}, "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Description string `json:"description"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Success || resp.Data.Description == "" {
		t.Fatalf("missing suggestion in response: %s", w.Body.String())
	}
	if ai.gotTitle != "Old town walk" || ai.gotCity != "Cartagena" {
		t.Fatalf("prompt fields not forwarded: title=%q city=%q", ai.gotTitle, ai.gotCity)
	}
}

func TestSuggest_requiresTitle(t *testing.T) {
	r := setupRouter(t, &mockAI{text: "x"})
	w := post(r, map[string]string{"city": "Lima"}, "good-token")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSuggest_requiresAuth(t *testing.T) {
	r := setupRouter(t, &mockAI{text: "x"})
	w := post(r, map[string]string{"title": "t"}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSuggest_aiFailure(t *testing.T) {
	r := setupRouter(t, &mockAI{err: errors.New("rate limited")})
	w := post(r, map[string]string{"title": "t"}, "good-token")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestSuggest_notConfigured(t *testing.T) {
	r := setupRouter(t, nil)
	w := post(r, map[string]string{"title": "t"}, "good-token")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
