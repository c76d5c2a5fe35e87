package storage

import (
	"encoding/json"
	"fmt"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/ports"
)

// validStatuses guards decoding; an unknown status marks the row corrupt
var validStatuses = map[domain.Status]bool{
	domain.StatusIdle:              true,
	domain.StatusRunning:           true,
	domain.StatusWaitingPermission: true,
	domain.StatusCompleted:         true,
	domain.StatusError:             true,
	domain.StatusAborted:           true,
}

// decodeRecord converts a database row to a session record, failing on
// anything that cannot be interpreted
func decodeRecord(model SessionModel) (*ports.SessionRecord, error) {
	if model.ID == "" {
		return nil, fmt.Errorf("session row has empty id")
	}

	status := domain.Status(model.Status)
	if !validStatuses[status] {
		return nil, fmt.Errorf("unknown session status %q", model.Status)
	}

	var usage *domain.UsageStats
	if model.UsageJSON != "" {
		usage = &domain.UsageStats{}
		if err := json.Unmarshal([]byte(model.UsageJSON), usage); err != nil {
			return nil, fmt.Errorf("malformed usage stats: %w", err)
		}
	}

	return &ports.SessionRecord{
		ID:            model.ID,
		Prompt:        model.Prompt,
		ProjectRoot:   model.ProjectRoot,
		Status:        status,
		ResumeToken:   model.ResumeToken,
		WorkspacePath: model.WorkspacePath,
		BranchName:    model.BranchName,
		LogPath:       model.LogPath,
		LastError:     model.LastError,
		Usage:         usage,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

// encodeRecord converts a session record to its database row
func encodeRecord(record ports.SessionRecord) (SessionModel, error) {
	usageJSON := ""
	if record.Usage != nil {
		data, err := json.Marshal(record.Usage)
		if err != nil {
			return SessionModel{}, fmt.Errorf("failed to encode usage stats: %w", err)
		}
		usageJSON = string(data)
	}

	return SessionModel{
		ID:            record.ID,
		Prompt:        record.Prompt,
		ProjectRoot:   record.ProjectRoot,
		Status:        string(record.Status),
		ResumeToken:   record.ResumeToken,
		WorkspacePath: record.WorkspacePath,
		BranchName:    record.BranchName,
		LogPath:       record.LogPath,
		LastError:     record.LastError,
		UsageJSON:     usageJSON,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}
