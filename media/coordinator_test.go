package media

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"testing"
)

// fakeUploader fails on the upload whose index equals failAt (-1 = never).
type fakeUploader struct {
	failAt     int
	emptyAt    int
	uploads    []string
	destroyed  []string
	destroyErr error
}

func newFakeUploader() *fakeUploader { return &fakeUploader{failAt: -1, emptyAt: -1} }

func (f *fakeUploader) Upload(ctx context.Context, file *multipart.FileHeader) (string, string, error) {
	i := len(f.uploads)
	if i == f.failAt {
		return "", "", errors.New("host unavailable")
	}
	if i == f.emptyAt {
		f.uploads = append(f.uploads, file.Filename)
		return "", "", nil
	}
	f.uploads = append(f.uploads, file.Filename)
	return fmt.Sprintf("https://media.test/%s", file.Filename), fmt.Sprintf("pid-%d", i), nil
}

func (f *fakeUploader) Destroy(ctx context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	return f.destroyErr
}

func headers(names ...string) []*multipart.FileHeader {
	out := make([]*multipart.FileHeader, 0, len(names))
	for _, n := range names {
		out = append(out, &multipart.FileHeader{Filename: n})
	}
	return out
}

func TestUploadAll_preservesOrder(t *testing.T) {
	up := newFakeUploader()
	c := NewCoordinator(up)
	uploads, err := c.UploadAll(context.Background(), headers("a.jpg", "b.jpg", "c.jpg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(uploads) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(uploads))
	}
	want := []string{"https://media.test/a.jpg", "https://media.test/b.jpg", "https://media.test/c.jpg"}
	for i, u := range uploads {
		if u.URL != want[i] {
			t.Fatalf("order broken at %d: got %s want %s", i, u.URL, want[i])
		}
	}
}

func TestUploadAll_failureReturnsPrefix(t *testing.T) {
	up := newFakeUploader()
	up.failAt = 1
	c := NewCoordinator(up)
	uploads, err := c.UploadAll(context.Background(), headers("a.jpg", "b.jpg", "c.jpg"))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if len(uploads) != 1 {
		t.Fatalf("expected prefix of 1 upload, got %d", len(uploads))
	}
	if uploads[0].URL != "https://media.test/a.jpg" {
		t.Fatalf("unexpected prefix: %s", uploads[0].URL)
	}
}

func TestUploadAll_emptyResultIsFailure(t *testing.T) {
	up := newFakeUploader()
	up.emptyAt = 0
	c := NewCoordinator(up)
	if _, err := c.UploadAll(context.Background(), headers("a.jpg")); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed on empty host result, got %v", err)
	}
}

func TestUploadAll_nilUploader(t *testing.T) {
	c := NewCoordinator(nil)
	if _, err := c.UploadAll(context.Background(), headers("a.jpg")); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed without uploader, got %v", err)
	}
}

func TestUploadAll_noFilesWithoutUploader(t *testing.T) {
	// A server booted without media credentials still accepts photo-less
	// requests; only actual files need a host.
	c := NewCoordinator(nil)
	uploads, err := c.UploadAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("zero-file batch should succeed without uploader, got %v", err)
	}
	if len(uploads) != 0 {
		t.Fatalf("expected no uploads, got %d", len(uploads))
	}
}

func TestRollback_deletesEveryUpload(t *testing.T) {
	up := newFakeUploader()
	c := NewCoordinator(up)
	c.Rollback(context.Background(), []Upload{{URL: "u1", PublicID: "p1"}, {URL: "u2", PublicID: "p2"}})
	if len(up.destroyed) != 2 {
		t.Fatalf("expected 2 delete calls, got %d", len(up.destroyed))
	}
}

func TestRollback_swallowsDeleteErrors(t *testing.T) {
	up := newFakeUploader()
	up.destroyErr = errors.New("delete rejected")
	c := NewCoordinator(up)
	// Must not panic or surface anything; every delete is still attempted.
	c.Rollback(context.Background(), []Upload{{PublicID: "p1"}, {PublicID: "p2"}})
	if len(up.destroyed) != 2 {
		t.Fatalf("expected 2 delete attempts, got %d", len(up.destroyed))
	}
}
