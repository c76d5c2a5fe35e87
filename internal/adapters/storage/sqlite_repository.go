package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// SQLiteStore implements ports.SessionStore using GORM
type SQLiteStore struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var _ ports.SessionStore = (*SQLiteStore)(nil)

// gormLogger bridges GORM logging onto the maestro logger
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error",
			"error", err,
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else if elapsed > 200*time.Millisecond {
		logging.Logger.Warn("slow query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else {
		logging.Logger.Debug("gorm query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("MAESTRO_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// NewSQLiteStore opens (or creates) the session database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Expand home directory if present
	if len(dbPath) > 0 && dbPath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent access
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(&SessionModel{}, &QuarantinedSessionModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get implements ports.SessionRecordReader.Get
func (s *SQLiteStore) Get(ctx context.Context, id string) (*ports.SessionRecord, error) {
	var model SessionModel

	err := withRetry(func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	record, err := decodeRecord(model)
	if err != nil {
		s.quarantine(ctx, model, err)
		return nil, domain.ErrSessionNotFound
	}
	return record, nil
}

// ListByProject implements ports.SessionRecordReader.ListByProject.
// Rows that fail to decode are quarantined instead of failing the load.
func (s *SQLiteStore) ListByProject(ctx context.Context, projectRoot string) ([]ports.SessionRecord, error) {
	var models []SessionModel

	err := withRetry(func() error {
		query := s.db.WithContext(ctx).Order("created_at ASC")
		if projectRoot != "" {
			query = query.Where("project_root = ?", projectRoot)
		}
		return query.Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	records := make([]ports.SessionRecord, 0, len(models))
	for _, model := range models {
		record, err := decodeRecord(model)
		if err != nil {
			s.quarantine(ctx, model, err)
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

// Upsert implements ports.SessionRecordWriter.Upsert
func (s *SQLiteStore) Upsert(ctx context.Context, record ports.SessionRecord) error {
	model, err := encodeRecord(record)
	if err != nil {
		return err
	}

	return withRetry(func() error {
		return s.db.WithContext(ctx).Save(&model).Error
	}, 3)
}

// UpdateStatus implements ports.SessionRecordWriter.UpdateStatus
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status domain.Status, lastError string) error {
	return s.updateColumns(ctx, id, map[string]any{
		"status":     string(status),
		"last_error": lastError,
	})
}

// UpdateResumeToken implements ports.SessionRecordWriter.UpdateResumeToken
func (s *SQLiteStore) UpdateResumeToken(ctx context.Context, id, token string) error {
	return s.updateColumns(ctx, id, map[string]any{"resume_token": token})
}

// UpdateUsage implements ports.SessionRecordWriter.UpdateUsage
func (s *SQLiteStore) UpdateUsage(ctx context.Context, id string, usage domain.UsageStats) error {
	data, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("failed to encode usage stats: %w", err)
	}
	return s.updateColumns(ctx, id, map[string]any{"usage_json": string(data)})
}

// Delete implements ports.SessionRecordWriter.Delete
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return withRetry(func() error {
		result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&SessionModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}
		return nil
	}, 3)
}

func (s *SQLiteStore) updateColumns(ctx context.Context, id string, values map[string]any) error {
	return withRetry(func() error {
		result := s.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}
		return nil
	}, 3)
}

// quarantine moves an undecodable row aside so one corrupt record never
// fails a whole history load
func (s *SQLiteStore) quarantine(ctx context.Context, model SessionModel, cause error) {
	logging.Logger.Warn("Quarantining corrupt session record",
		"session_id", model.ID,
		"error", cause,
	)

	raw, err := json.Marshal(model)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", model))
	}

	err = withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			quarantined := QuarantinedSessionModel{
				SessionID: model.ID,
				Raw:       string(raw),
				Reason:    cause.Error(),
			}
			if err := tx.Create(&quarantined).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", model.ID).Delete(&SessionModel{}).Error
		})
	}, 3)
	if err != nil {
		logging.Logger.Error("Failed to quarantine session record", "session_id", model.ID, "error", err)
	}
}

// withRetry retries operations that fail due to database locks
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}
