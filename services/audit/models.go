package audit

import "time"

// Entry is one immutable audit record. UserID 0 marks an unauthenticated actor.
type Entry struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"index;not null;default:0"`
	Action       Action    `json:"action" gorm:"size:50;index;not null"`
	ResourceType string    `json:"resource_type" gorm:"size:100;index;not null"`
	ResourceID   string    `json:"resource_id,omitempty" gorm:"size:255"`
	Details      string    `json:"details,omitempty" gorm:"type:text"`
	IPAddress    string    `json:"ip_address,omitempty" gorm:"size:64"`
	UserAgent    string    `json:"user_agent,omitempty" gorm:"size:512"`
	Success      bool      `json:"success" gorm:"index"`
	ErrorMessage string    `json:"error_message,omitempty" gorm:"size:1000"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

func (Entry) TableName() string {
	return "audit_logs"
}

type Filter struct {
	UserID       *uint
	Actions      []Action
	ResourceType string
	Success      *bool
	From         time.Time
	To           time.Time
	Page         int
	PerPage      int
}

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
}

type Page struct {
	Entries    []Entry `json:"entries"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
}

type Stats struct {
	Total       int64              `json:"total"`
	Failures    int64              `json:"failures"`
	UniqueUsers int64              `json:"unique_users"`
	ByAction    map[Action]int64   `json:"by_action"`
	ByCategory  map[Category]int64 `json:"by_category"`
}
