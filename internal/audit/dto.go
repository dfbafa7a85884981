package audit

import "time"

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Filter selects entries for Query. Zero values mean "any".
type Filter struct {
	RoleID       *int64
	ActionKind   Kind
	ResourceType string
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

type Page struct {
	Entries []*Entry `json:"entries"`
	Total   int64    `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

type VerifyReport struct {
	Checked       int    `json:"checked"`
	Valid         bool   `json:"valid"`
	FirstBrokenID *int64 `json:"first_broken_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
