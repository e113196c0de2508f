// Package drive uploads original receipt images to a Google Drive folder so
// the spreadsheet rows can reference the backing file.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
)

type Client struct {
	svc      *gdrive.Service
	folderID string
}

// Uploader stores a receipt file and returns an opaque file reference.
type Uploader interface {
	Upload(ctx context.Context, name, mimeType string, content io.Reader) (fileRef string, err error)
}

var _ Uploader = (*Client)(nil)

// New creates a Drive client that uploads into the given folder.
// Credentials come from the same environment variables as the Sheets client.
func New(ctx context.Context, folderID string) (*Client, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, errors.New("missing drive folder ID")
	}

	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gdrive.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gdrive.DriveFileScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Client{svc: svc, folderID: folderID}, nil
}

func loadCredentials() ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		credentialsJSON, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return credentialsJSON, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Upload stores the file in the configured folder and returns its Drive ID.
func (c *Client) Upload(ctx context.Context, name, mimeType string, content io.Reader) (string, error) {
	if c.svc == nil {
		return "", errors.New("drive service not initialized")
	}

	meta := &gdrive.File{
		Name:    name,
		Parents: []string{c.folderID},
	}

	file, err := c.svc.Files.Create(meta).
		Media(content, googleapi.ContentType(mimeType)).
		Fields("id").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload %s to drive: %w", name, err)
	}

	slog.InfoContext(ctx, "Receipt file uploaded to Drive",
		"name", name,
		"mime_type", mimeType,
		"file_id", file.Id)

	return file.Id, nil
}
