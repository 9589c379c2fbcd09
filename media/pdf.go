package media

import (
	"errors"
	"mime/multipart"

	pdf "rsc.io/pdf"
)

// ValidatePDF sanity-checks an uploaded document attachment before it is sent
// to the media host: it must parse as a PDF with at least one page. Malformed
// files make rsc.io/pdf panic, so that is recovered into an error.
func ValidatePDF(file *multipart.FileHeader) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("file is not a valid PDF")
		}
	}()
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	r, err := pdf.NewReader(src, file.Size)
	if err != nil {
		return errors.New("file is not a valid PDF")
	}
	if r.NumPage() < 1 {
		return errors.New("PDF has no pages")
	}
	return nil
}
