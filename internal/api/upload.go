package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	apperrors "github.com/VPR42/servigo-go/internal/errors"
)

type UploadResponse struct {
	URL string `json:"url"`
}

// UploadAvatar sends the user's avatar image as multipart form data.
func (c *Client) UploadAvatar(ctx context.Context, filename string, file io.Reader) (*UploadResponse, error) {
	return c.upload(ctx, "/upload/avatar", filename, file)
}

// UploadServiceCover sends a cover image for a service listing.
func (c *Client) UploadServiceCover(ctx context.Context, serviceID, filename string, file io.Reader) (*UploadResponse, error) {
	return c.upload(ctx, "/services/"+serviceID+"/cover", filename, file)
}

// upload buffers the multipart body up front so the request can be re-issued
// after a token refresh like any other call.
func (c *Client) upload(ctx context.Context, path, filename string, file io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.Internal("failed to build upload body").WithCause(err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, apperrors.Internal("failed to read upload file").WithCause(err)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.Internal("failed to finish upload body").WithCause(err)
	}

	var out UploadResponse
	if err := c.invoke(ctx, http.MethodPost, path, nil, buf.Bytes(), writer.FormDataContentType(), &out); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	return &out, nil
}
