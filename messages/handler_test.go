package messages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"traveo-backend/media"
	"traveo-backend/migrations"

	"github.com/gin-gonic/gin"
)

type fakeStore struct {
	messages []Message
	read     [][2]int // (receiver, sender) pairs marked read
}

func (f *fakeStore) Create(ctx context.Context, m *Message) error {
	m.ID = len(f.messages) + 1
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeStore) Conversation(ctx context.Context, a, b, limit int) ([]Message, error) {
	out := []Message{}
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) UnreadCount(ctx context.Context, receiverID int) (int, error) {
	n := 0
	for _, m := range f.messages {
		if m.ReceiverID == receiverID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkConversationRead(ctx context.Context, receiverID, senderID int) error {
	f.read = append(f.read, [2]int{receiverID, senderID})
	return nil
}

// fakeUploader records uploads; implements media.Uploader for attachment tests.
type fakeUploader struct {
	uploads []string
}

func (f *fakeUploader) Upload(ctx context.Context, file *multipart.FileHeader) (string, string, error) {
	f.uploads = append(f.uploads, file.Filename)
	return "https://media.test/" + file.Filename, "pid-" + file.Filename, nil
}

func (f *fakeUploader) Destroy(ctx context.Context, publicID string) error { return nil }

func setupRouter(t *testing.T, user *migrations.User, s *fakeStore) *gin.Engine {
	return setupRouterWithUploader(t, user, s, nil)
}

func setupRouterWithUploader(t *testing.T, user *migrations.User, s *fakeStore, up media.Uploader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	prev := currentUser
	RegisterUserResolver(func(c *gin.Context) *migrations.User {
		if c.GetHeader("Authorization") == "Bearer good-token" {
			return user
		}
		return nil
	})
	t.Cleanup(func() { currentUser = prev })
	r := gin.New()
	NewHandler(s, up).RegisterRoutes(r)
	return r
}

func doJSON(r *gin.Engine, method, path string, payload any, token string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSend_text(t *testing.T) {
	user := &migrations.User{ID: 1}
	s := &fakeStore{}
	r := setupRouter(t, user, s)

	w := doJSON(r, http.MethodPost, "/messages", map[string]any{"receiver_id": 2, "body": "hola"}, "good-token")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(s.messages) != 1 {
		t.Fatalf("message not stored")
	}
	m := s.messages[0]
	if m.Type != TypeText || m.SenderID != 1 || m.ReceiverID != 2 {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestSend_attachmentTypes(t *testing.T) {
	user := &migrations.User{ID: 1}
	s := &fakeStore{}
	r := setupRouter(t, user, s)

	// IMAGE without attachment is rejected
	w := doJSON(r, http.MethodPost, "/messages", map[string]any{"receiver_id": 2, "type": TypeImage}, "good-token")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for IMAGE without attachment, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/messages",
		map[string]any{"receiver_id": 2, "type": TypeDocument, "attachment_url": "https://media.test/doc.pdf"}, "good-token")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if s.messages[0].AttachmentURL == nil || *s.messages[0].AttachmentURL != "https://media.test/doc.pdf" {
		t.Fatalf("attachment not stored: %+v", s.messages[0])
	}
}

func TestSend_rejectsBadInput(t *testing.T) {
	user := &migrations.User{ID: 1}
	r := setupRouter(t, user, &fakeStore{})

	cases := []map[string]any{
		{"receiver_id": 2, "type": "GIF"},            // unknown type
		{"receiver_id": 1, "body": "self"},            // receiver == sender
		{"receiver_id": 0, "body": "x"},               // missing receiver
		{"receiver_id": 2, "type": TypeText, "body": "  "}, // blank body
	}
	for i, payload := range cases {
		w := doJSON(r, http.MethodPost, "/messages", payload, "good-token")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d: %s", i, w.Code, w.Body.String())
		}
	}
}

func TestConversationAndUnread(t *testing.T) {
	user := &migrations.User{ID: 1}
	s := &fakeStore{messages: []Message{
		{ID: 1, SenderID: 2, ReceiverID: 1, Type: TypeText},
		{ID: 2, SenderID: 1, ReceiverID: 2, Type: TypeText, IsRead: true},
		{ID: 3, SenderID: 3, ReceiverID: 1, Type: TypeText},
	}}
	r := setupRouter(t, user, s)

	w := doJSON(r, http.MethodGet, "/messages/conversation/2", nil, "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data []Message `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 messages with user 2, got %d", len(resp.Data))
	}

	w = doJSON(r, http.MethodGet, "/messages/unread-count", nil, "good-token")
	var unread struct {
		Data struct {
			Unread int `json:"unread"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &unread); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if unread.Data.Unread != 2 {
		t.Fatalf("expected 2 unread, got %d", unread.Data.Unread)
	}
}

func TestMarkRead(t *testing.T) {
	user := &migrations.User{ID: 1}
	s := &fakeStore{}
	r := setupRouter(t, user, s)

	w := doJSON(r, http.MethodPut, "/messages/read", map[string]any{"sender_id": 2}, "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(s.read) != 1 || s.read[0] != [2]int{1, 2} {
		t.Fatalf("mark read not applied: %v", s.read)
	}
}

// minimalPDF builds a one-page PDF with a correct xref table; offsets are
// computed from the buffer so the file always parses.
func minimalPDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 4)
	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n")
	start := b.Len()
	b.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", start)
	return b.Bytes()
}

func doUpload(r *gin.Engine, msgType, filename string, content []byte, token string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if msgType != "" {
		mw.WriteField("type", msgType)
	}
	if filename != "" {
		fw, _ := mw.CreateFormFile("file", filename)
		fw.Write(content)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/messages/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadAttachment_document(t *testing.T) {
	user := &migrations.User{ID: 1}
	up := &fakeUploader{}
	r := setupRouterWithUploader(t, user, &fakeStore{}, up)

	w := doUpload(r, TypeDocument, "guide.pdf", minimalPDF(), "good-token")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			URL  string `json:"url"`
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Data.URL != "https://media.test/guide.pdf" || resp.Data.Type != TypeDocument {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
	if len(up.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(up.uploads))
	}
}

func TestUploadAttachment_rejectsInvalidPDF(t *testing.T) {
	user := &migrations.User{ID: 1}
	up := &fakeUploader{}
	r := setupRouterWithUploader(t, user, &fakeStore{}, up)

	w := doUpload(r, TypeDocument, "fake.pdf", []byte("not a pdf at all"), "good-token")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid PDF, got %d: %s", w.Code, w.Body.String())
	}
	if len(up.uploads) != 0 {
		t.Fatalf("invalid file must never reach the media host")
	}
}

func TestUploadAttachment_imageSkipsPDFCheck(t *testing.T) {
	user := &migrations.User{ID: 1}
	r := setupRouterWithUploader(t, user, &fakeStore{}, &fakeUploader{})

	w := doUpload(r, TypeImage, "photo.jpg", []byte("jpegbytes"), "good-token")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUploadAttachment_rejectsNonAttachmentTypes(t *testing.T) {
	user := &migrations.User{ID: 1}
	r := setupRouterWithUploader(t, user, &fakeStore{}, &fakeUploader{})

	for _, tp := range []string{TypeText, TypeLocation, "GIF"} {
		w := doUpload(r, tp, "f.bin", []byte("x"), "good-token")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("type %s: expected 400, got %d", tp, w.Code)
		}
	}
}

func TestUploadAttachment_uploaderNotConfigured(t *testing.T) {
	user := &migrations.User{ID: 1}
	r := setupRouter(t, user, &fakeStore{})

	w := doUpload(r, TypeImage, "photo.jpg", []byte("x"), "good-token")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without media host, got %d", w.Code)
	}
}

func TestEndpointsRequireAuth(t *testing.T) {
	user := &migrations.User{ID: 1}
	r := setupRouter(t, user, &fakeStore{})

	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/messages"},
		{http.MethodPost, "/messages/attachments"},
		{http.MethodGet, "/messages/conversation/2"},
		{http.MethodGet, "/messages/unread-count"},
		{http.MethodPut, "/messages/read"},
	} {
		w := doJSON(r, rt.method, rt.path, map[string]any{}, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rt.method, rt.path, w.Code)
		}
	}
}
