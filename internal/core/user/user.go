package user

import "time"

// Identity is what the session layer hands to the authorization engine:
// an already authenticated caller.
type Identity struct {
	UserID int64
	RoleID int64
	TeamID *int64
}

type Profile struct {
	ID        int64
	Email     string
	Name      string
	RoleID    int64
	RoleName  string
	TeamID    *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Profile) Identity() Identity {
	return Identity{UserID: p.ID, RoleID: p.RoleID, TeamID: p.TeamID}
}
