package user

import (
	"time"

	userDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/user"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    int64     `json:"role_id"`
	RoleName  string    `json:"role_name,omitempty"`
	TeamID    *int64    `json:"team_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Row is a user joined with its role name.
type Row struct {
	userDatamodel.User
	RoleName string `gorm:"column:role_name"`
}

func FromRow(r *Row) *User {
	return &User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		RoleID:    r.RoleID,
		RoleName:  r.RoleName,
		TeamID:    r.TeamID,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func FromRows(rows []*Row) []*User {
	out := make([]*User, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromRow(r))
	}
	return out
}
