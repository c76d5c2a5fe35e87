package ports

import (
	"github.com/renato0307/maestro/internal/domain"
)

// SessionLog is the append-only durable log, one file per session.
// Append is single-writer per session; Read tolerates a file that is
// concurrently being appended to.
type SessionLog interface {
	Append(sessionID string, entry domain.LogEntry) error
	Read(sessionID string) ([]domain.LogEntry, error)
	Delete(sessionID string) error
	Path(sessionID string) string
}
