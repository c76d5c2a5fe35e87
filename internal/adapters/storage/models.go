package storage

import "time"

// SessionModel is the GORM model for the sessions table
type SessionModel struct {
	BranchName    string `gorm:"default:''"`
	CreatedAt     time.Time
	ID            string `gorm:"primaryKey"`
	LastError     string `gorm:"default:''"`
	LogPath       string `gorm:"default:''"`
	ProjectRoot   string `gorm:"not null;index:idx_project_root"`
	Prompt        string `gorm:"not null;default:''"`
	ResumeToken   string `gorm:"default:''"`
	Status        string `gorm:"not null;default:'idle'"`
	UpdatedAt     time.Time `gorm:"index:idx_updated_at"`
	UsageJSON     string    `gorm:"column:usage_json;default:''"`
	WorkspacePath string    `gorm:"default:''"`
}

// TableName specifies the table name for GORM
func (SessionModel) TableName() string { return "sessions" }

// QuarantinedSessionModel holds rows moved aside because they could not
// be decoded; they are kept for inspection, never loaded as history
type QuarantinedSessionModel struct {
	CreatedAt time.Time
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Raw       string `gorm:"not null"`
	Reason    string `gorm:"not null"`
	SessionID string `gorm:"index:idx_quarantined_session"`
}

// TableName specifies the table name for GORM
func (QuarantinedSessionModel) TableName() string { return "quarantined_sessions" }
