package gdrive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"storyreel/internal/ports"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// Client implements ports.StorageProvider backed by Google Drive.
// Object keys are used as Drive file names inside the configured folder and
// resolved back to file ids on read/delete, so keys stay provider-agnostic.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	file := &drive.File{Name: in.ObjectKey}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	_, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size}, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	fileID, err := c.resolve(ctx, objectKey)
	if err != nil {
		return nil, "", 0, err
	}

	resp, err := c.srv.Files.Get(fileID).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return nil, "", 0, err
	}

	contentType = resp.Header.Get("Content-Type")
	size = resp.ContentLength
	return resp.Body, contentType, size, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	fileID, err := c.resolve(ctx, objectKey)
	if err != nil {
		return err
	}
	return c.srv.Files.Delete(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

func (c *Client) ExistsObject(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.resolve(ctx, objectKey)
	if err == nil {
		return true, nil
	}
	if strings.Contains(err.Error(), "not found") {
		return false, nil
	}
	return false, err
}

// resolve finds the Drive file id for an object key.
func (c *Client) resolve(ctx context.Context, objectKey string) (string, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", strings.ReplaceAll(objectKey, "'", "\\'"))
	if c.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", c.folderID)
	}

	list, err := c.srv.Files.List().
		Q(q).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gdrive lookup failed: %w", err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("gdrive object not found: %s", objectKey)
	}
	return list.Files[0].Id, nil
}
