// Package media uploads receipt and icon images to the media host.
//
// The host is a Cloudinary-style unsigned upload endpoint: a multipart
// POST with the file and a target folder, answered with JSON carrying the
// public URL of the stored asset.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPUploader implements ledger.Uploader against an HTTP upload endpoint.
type HTTPUploader struct {
	UploadURL string
	Client    *http.Client
}

func NewHTTPUploader(uploadURL string) *HTTPUploader {
	return &HTTPUploader{
		UploadURL: uploadURL,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload posts the file and returns the public URL assigned by the host.
func (u *HTTPUploader) Upload(ctx context.Context, file io.Reader, name, folder string) (string, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := form.WriteField("folder", folder); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.UploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to media host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("media host returned %d: %s", resp.StatusCode, body)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("media host returned no url")
	}
	return out.URL, nil
}
