package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
)

// ErrUploadFailed wraps any media host failure during an upload batch.
var ErrUploadFailed = errors.New("media upload failed")

// Upload is one hosted file: the permanent URL plus the host id needed to delete it.
type Upload struct {
	URL      string `json:"url"`
	PublicID string `json:"-"`
}

// Uploader abstracts the media host so handlers and tests can swap it out.
type Uploader interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (url, publicID string, err error)
	Destroy(ctx context.Context, publicID string) error
}

// Coordinator uploads batches of files and rolls them back when a later step fails.
type Coordinator struct {
	up Uploader
}

func NewCoordinator(up Uploader) *Coordinator { return &Coordinator{up: up} }

// UploadAll uploads the files one at a time, in submission order, and returns
// the hosted results in the same order. On failure the already-uploaded prefix
// is returned alongside ErrUploadFailed so the caller can roll it back.
func (c *Coordinator) UploadAll(ctx context.Context, files []*multipart.FileHeader) ([]Upload, error) {
	if len(files) == 0 {
		// Nothing to host; a server without an uploader can still serve
		// photo-less requests.
		return []Upload{}, nil
	}
	if c.up == nil {
		return nil, fmt.Errorf("%w: no uploader configured", ErrUploadFailed)
	}
	uploads := []Upload{}
	for i, f := range files {
		url, publicID, err := c.up.Upload(ctx, f)
		if err != nil {
			log.Printf("[MEDIA][UPLOAD] failed index=%d filename=%s err=%v", i, f.Filename, err)
			return uploads, fmt.Errorf("%w: %s: %v", ErrUploadFailed, f.Filename, err)
		}
		if url == "" {
			// Host answered without a result; treat the same as an error.
			log.Printf("[MEDIA][UPLOAD] empty result index=%d filename=%s", i, f.Filename)
			return uploads, fmt.Errorf("%w: %s: empty result", ErrUploadFailed, f.Filename)
		}
		uploads = append(uploads, Upload{URL: url, PublicID: publicID})
	}
	return uploads, nil
}

// Rollback issues best-effort deletes for every upload of this attempt.
// Failures are logged and swallowed: the rollback never changes the outcome
// already being reported to the caller.
func (c *Coordinator) Rollback(ctx context.Context, uploads []Upload) {
	if c.up == nil {
		return
	}
	for _, u := range uploads {
		if err := c.up.Destroy(ctx, u.PublicID); err != nil {
			log.Printf("[MEDIA][ROLLBACK] delete failed public_id=%s url=%s err=%v", u.PublicID, u.URL, err)
			continue
		}
		log.Printf("[MEDIA][ROLLBACK] deleted public_id=%s", u.PublicID)
	}
}
