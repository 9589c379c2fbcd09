package media

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryUploader implements Uploader against Cloudinary.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryFromEnv returns a configured uploader or nil when CLOUDINARY_URL
// is not set (photo uploads are then rejected by the handlers).
func NewCloudinaryFromEnv() (*CloudinaryUploader, error) {
	url := os.Getenv("CLOUDINARY_URL")
	if url == "" {
		return nil, nil
	}
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, err
	}
	folder := os.Getenv("CLOUDINARY_FOLDER")
	if folder == "" {
		folder = "traveo"
	}
	return &CloudinaryUploader{cld: cld, folder: folder}, nil
}

func (c *CloudinaryUploader) Upload(ctx context.Context, file *multipart.FileHeader) (string, string, error) {
	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()
	publicID := uuid.NewString()
	res, err := c.cld.Upload.Upload(ctx, src, uploader.UploadParams{
		Folder:   c.folder,
		PublicID: publicID,
	})
	if err != nil {
		return "", "", err
	}
	if res.SecureURL == "" {
		return "", "", fmt.Errorf("cloudinary returned no secure_url for %s", file.Filename)
	}
	return res.SecureURL, res.PublicID, nil
}

func (c *CloudinaryUploader) Destroy(ctx context.Context, publicID string) error {
	_, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}
