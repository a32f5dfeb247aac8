package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/funko-store/funko-api/internal/notifications"
	"github.com/funko-store/funko-api/internal/platform/httpx"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogNotify publishes a catalog change notification.
	TaskCatalogNotify = "catalog:notify"
	// TaskStorageRemove deletes a stored file that is no longer referenced.
	TaskStorageRemove = "storage:remove"
)

// StorageRemovePayload names the file to delete. Filename may also be a public URL.
type StorageRemovePayload struct {
	Filename string `json:"filename"`
}

// NewCatalogNotifyTask constructs an Asynq task carrying n.
func NewCatalogNotifyTask(n notifications.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogNotify, data), nil
}

// NewStorageRemoveTask constructs an Asynq task deleting filename.
func NewStorageRemoveTask(filename string) (*asynq.Task, error) {
	data, err := json.Marshal(StorageRemovePayload{Filename: filename})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStorageRemove, data), nil
}

// FileRemover deletes a stored file.
type FileRemover interface {
	Remove(ctx context.Context, name string) error
}

// Handlers processes the worker's task types.
type Handlers struct {
	Publisher notifications.Publisher
	Files     FileRemover
	Logger    *slog.Logger
}

// HandleCatalogNotify processes TaskCatalogNotify tasks.
func (h Handlers) HandleCatalogNotify(ctx context.Context, t *asynq.Task) error {
	var n notifications.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskCatalogNotify, err, asynq.SkipRetry)
	}
	if err := h.Publisher.Publish(ctx, n); err != nil {
		return fmt.Errorf("publish %s %s: %w", n.Entity, n.Type, err)
	}
	return nil
}

// HandleStorageRemove processes TaskStorageRemove tasks. A file that is already gone counts as done.
func (h Handlers) HandleStorageRemove(ctx context.Context, t *asynq.Task) error {
	var payload StorageRemovePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Filename == "" {
		return fmt.Errorf("decode %s payload: %w", TaskStorageRemove, asynq.SkipRetry)
	}
	err := h.Files.Remove(ctx, payload.Filename)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, httpx.ErrNotFound):
		h.logger().Info("stored file already removed", slog.String("filename", payload.Filename))
		return nil
	case errors.Is(err, httpx.ErrValidation):
		return fmt.Errorf("remove %s: %v: %w", payload.Filename, err, asynq.SkipRetry)
	default:
		return fmt.Errorf("remove %s: %w", payload.Filename, err)
	}
}

func (h Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
