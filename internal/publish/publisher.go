package publish

import (
	"context"
	"errors"
	"log/slog"

	"stlpipe/internal/logging"
)

// Storage is a remote file store that can expose files publicly.
type Storage interface {
	Upload(ctx context.Context, localPath string) (string, error)
	SetPublicReadable(ctx context.Context, remoteID string) (string, error)
}

// Publisher wraps a Storage and normalizes its errors.
type Publisher struct {
	storage Storage
	logger  *slog.Logger
}

// NewPublisher returns a Publisher backed by storage.
func NewPublisher(storage Storage, logger *slog.Logger) *Publisher {
	return &Publisher{storage: storage, logger: logging.NewComponentLogger(logger, "publish")}
}

// Upload sends localPath to storage and returns its remote identifier.
func (p *Publisher) Upload(ctx context.Context, localPath string) (string, error) {
	if p == nil || p.storage == nil {
		return "", PermissionDenied("upload", errors.New("no storage configured"))
	}
	id, err := p.storage.Upload(ctx, localPath)
	if err != nil {
		return "", classify("upload", err)
	}
	logging.WithContext(ctx, p.logger).Debug("file uploaded",
		logging.String("path", localPath),
		logging.String("remote_id", id),
	)
	return id, nil
}

// Share makes remoteID publicly readable and returns its URL.
func (p *Publisher) Share(ctx context.Context, remoteID string) (string, error) {
	if p == nil || p.storage == nil {
		return "", PermissionDenied("share", errors.New("no storage configured"))
	}
	url, err := p.storage.SetPublicReadable(ctx, remoteID)
	if err != nil {
		return "", classify("share", err)
	}
	if url == "" {
		return "", Transient("share", errors.New("storage returned an empty link"))
	}
	return url, nil
}

// Publish uploads localPath and shares it in one call.
func (p *Publisher) Publish(ctx context.Context, localPath string) (string, string, error) {
	id, err := p.Upload(ctx, localPath)
	if err != nil {
		return "", "", err
	}
	url, err := p.Share(ctx, id)
	if err != nil {
		return id, "", err
	}
	return id, url, nil
}
