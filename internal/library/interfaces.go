package library

import (
	"context"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// LocalStore is a durable key-value store holding the last-known snapshot.
type LocalStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// RemoteService is the relational source of truth. Every call is scoped to
// userID; the implementation enforces row ownership.
type RemoteService interface {
	ListPrompts(ctx context.Context, userID string) ([]domain.Prompt, error)
	InsertPrompt(ctx context.Context, userID string, p domain.Prompt) (domain.Prompt, error)
	UpdatePrompt(ctx context.Context, userID, id string, p domain.Prompt) error
	DeletePrompt(ctx context.Context, userID, id string) error

	ListFolders(ctx context.Context, userID string) ([]domain.Folder, error)
	InsertFolder(ctx context.Context, userID string, f domain.Folder) (domain.Folder, error)
	UpdateFolder(ctx context.Context, userID, id string, f domain.Folder) error
	DeleteFolder(ctx context.Context, userID, id string) error

	InsertPromptVersion(ctx context.Context, userID string, v domain.PromptVersion) error
	ListPromptVersions(ctx context.Context, userID, promptID string) ([]domain.PromptVersion, error)
}

// AuthProvider resolves the active user. The callback fires with nil when the
// session clears.
type AuthProvider interface {
	CurrentUser() *domain.UserIdentity
	OnIdentityChange(fn func(*domain.UserIdentity)) (unsubscribe func())
}

// Recorder receives sync outcomes, typically for metrics.
type Recorder interface {
	SyncResult(entity, op string, err error)
	PendingCount(n int)
}

type nopRecorder struct{}

func (nopRecorder) SyncResult(string, string, error) {}
func (nopRecorder) PendingCount(int)                 {}
