package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

// User is a clinic operator allowed to write appointment statuses back to
// the practice-management database. Users are seeded from configuration.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role

	FailedLoginCount int
	LockedUntil      *time.Time
	LastLoginAt      *time.Time
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

type SyncTrigger string

const (
	TriggerStartup  SyncTrigger = "startup"
	TriggerSchedule SyncTrigger = "schedule"
	TriggerManual   SyncTrigger = "manual"
	TriggerRequest  SyncTrigger = "request"
)

// SyncRun is one journaled sync pass.
type SyncRun struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OccurredAt time.Time `gorm:"autoCreateTime;index" json:"occurred_at"`

	Trigger  SyncTrigger `gorm:"column:trigger;type:varchar(20);not null;index" json:"trigger"`
	Source   string      `gorm:"column:source;type:varchar(30);not null;index" json:"source"`
	Degraded bool        `gorm:"column:degraded;not null;default:false;index" json:"degraded"`
	Error    string      `gorm:"column:error;type:text" json:"error,omitempty"`

	Total      int   `gorm:"column:total;not null" json:"total"`
	NewCount   int   `gorm:"column:new_count;not null" json:"new"`
	Updated    int   `gorm:"column:updated_count;not null" json:"updated"`
	Dropped    int   `gorm:"column:dropped_count;not null" json:"dropped"`
	Patients   int   `gorm:"column:patients;not null" json:"patients"`
	DurationMS int64 `gorm:"column:duration_ms;not null" json:"duration_ms"`
}

func (SyncRun) TableName() string {
	return "sync.runs"
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

type Claims struct {
	UserID   uuid.UUID `json:"sub"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
}
