package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"stlpipe/internal/config"
)

const uploadChunkSize = 5 * 1024 * 1024

var quotaReasons = map[string]struct{}{
	"storageQuotaExceeded":  {},
	"quotaExceeded":         {},
	"userRateLimitExceeded": {},
}

// Drive stores archives in Google Drive.
type Drive struct {
	service  *drive.Service
	folderID string
}

// NewDrive authenticates with the configured method and returns a Drive
// storage rooted at gdrive.folder_id.
func NewDrive(ctx context.Context, cfg *config.Config) (*Drive, error) {
	client, err := HTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewDriveWithClient(ctx, client, cfg.GDrive.FolderID)
}

// NewDriveWithClient builds a Drive storage on an existing HTTP client. Extra
// options are passed to the Drive service, for example an endpoint override.
func NewDriveWithClient(ctx context.Context, client *http.Client, folderID string, opts ...option.ClientOption) (*Drive, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{service: service, folderID: folderID}, nil
}

// Upload sends localPath to Drive using a chunked resumable upload.
func (d *Drive) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	meta := &drive.File{Name: filepath.Base(localPath)}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}
	created, err := d.service.Files.Create(meta).
		Media(file, googleapi.ChunkSize(uploadChunkSize)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", mapDriveError("upload", err)
	}
	return created.Id, nil
}

// SetPublicReadable grants anyone-with-link read access and returns the
// direct download link, falling back to the viewer link.
func (d *Drive) SetPublicReadable(ctx context.Context, remoteID string) (string, error) {
	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := d.service.Permissions.Create(remoteID, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return "", mapDriveError("share", err)
	}
	file, err := d.service.Files.Get(remoteID).
		Fields("webContentLink", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", mapDriveError("share", err)
	}
	if file.WebContentLink != "" {
		return file.WebContentLink, nil
	}
	return file.WebViewLink, nil
}

// Account describes the authenticated Drive user.
type Account struct {
	Email      string
	UsageBytes int64
	LimitBytes int64
}

// About returns the authenticated account and its storage usage.
func (d *Drive) About(ctx context.Context) (Account, error) {
	about, err := d.service.About.Get().Fields("user", "storageQuota").Context(ctx).Do()
	if err != nil {
		return Account{}, mapDriveError("about", err)
	}
	var account Account
	if about.User != nil {
		account.Email = about.User.EmailAddress
	}
	if about.StorageQuota != nil {
		account.UsageBytes = about.StorageQuota.Usage
		account.LimitBytes = about.StorageQuota.Limit
	}
	return account, nil
}

func mapDriveError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			if _, ok := quotaReasons[item.Reason]; ok {
				return Quota(op, err)
			}
			if item.Reason == "rateLimitExceeded" {
				return Transient(op, err)
			}
		}
		// 401, 403 and 404 land here along with every other client error.
		if code := apiErr.Code; code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return PermissionDenied(op, err)
		}
	}
	// Server errors, throttling, timeouts and network failures.
	return Transient(op, err)
}
