// Package media wraps the external image host: a multipart POST to
// its upload endpoint returns a publicly addressable URL. A reduced
// local thumbnail is kept alongside for grid views.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"pixelfeed/apperr"
)

const thumbDir = "./static/thumbs"

type Uploader struct {
	Endpoint string
	Preset   string
	Client   *http.Client
}

func NewUploader() *Uploader {
	return &Uploader{
		Endpoint: os.Getenv("UPLOAD_ENDPOINT"),
		Preset:   os.Getenv("UPLOAD_PRESET"),
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

// Upload posts the blob to the external endpoint and returns the
// public URL from the response's secure_url field.
func (u *Uploader) Upload(ctx context.Context, filename string, src io.Reader) (string, error) {
	if u.Endpoint == "" {
		return "", apperr.Validation("no upload endpoint configured")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		if u.Preset != "" {
			if err := mw.WriteField("upload_preset", u.Preset); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, pr)
	if err != nil {
		return "", apperr.Transient("upload request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", apperr.Transient("upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.Transient("upload", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Transient("upload decode", err)
	}
	if out.SecureURL == "" {
		return "", apperr.Transient("upload", fmt.Errorf("response missing secure_url"))
	}
	return out.SecureURL, nil
}

// SaveThumbnail writes a reduced local copy and returns its path.
func SaveThumbnail(src io.Reader, width, height int) (string, error) {
	img, err := imaging.Decode(src)
	if err != nil {
		return "", apperr.Validation("unreadable image: %v", err)
	}

	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		return "", err
	}

	thumb := imaging.Thumbnail(img, width, height, imaging.Lanczos)
	name := uuid.New().String() + ".jpg"
	path := filepath.Join(thumbDir, name)
	if err := imaging.Save(thumb, path); err != nil {
		return "", err
	}
	return "/static/thumbs/" + name, nil
}
