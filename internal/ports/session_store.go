package ports

import (
	"context"
	"time"

	"github.com/renato0307/maestro/internal/domain"
)

// SessionRecord is the durable shape of a session. It survives process
// restarts; live-only fields (pending permission, auto-accept) do not.
type SessionRecord struct {
	ID            string
	Prompt        string
	ProjectRoot   string
	Status        domain.Status
	ResumeToken   string
	WorkspacePath string
	BranchName    string
	LogPath       string
	LastError     string
	Usage         *domain.UsageStats
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionRecordReader reads durable session records
type SessionRecordReader interface {
	Get(ctx context.Context, id string) (*SessionRecord, error)
	ListByProject(ctx context.Context, projectRoot string) ([]SessionRecord, error)
}

// SessionRecordWriter creates, updates, and deletes durable session records
type SessionRecordWriter interface {
	Upsert(ctx context.Context, record SessionRecord) error
	UpdateStatus(ctx context.Context, id string, status domain.Status, lastError string) error
	UpdateResumeToken(ctx context.Context, id, token string) error
	UpdateUsage(ctx context.Context, id string, usage domain.UsageStats) error
	Delete(ctx context.Context, id string) error
}

// SessionStore is the composite durable store interface
type SessionStore interface {
	SessionRecordReader
	SessionRecordWriter
	Close() error
}
