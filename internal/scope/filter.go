package scope

import (
	"fmt"

	"gorm.io/gorm"
)

type Kind int

const (
	MatchNothing Kind = iota
	MatchOwner
	MatchTeam
	MatchAll
)

func (k Kind) String() string {
	switch k {
	case MatchOwner:
		return "owner"
	case MatchTeam:
		return "team"
	case MatchAll:
		return "all"
	default:
		return "nothing"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Filter is the row restriction a granted scope resolves to. The zero value
// matches nothing.
type Filter struct {
	Kind   Kind  `json:"kind"`
	UserID int64 `json:"user_id,omitempty"`
	TeamID int64 `json:"team_id,omitempty"`
}

// ResolveFilter maps a scope to a filter for the given caller. A team scope
// without a team, or an unknown scope, yields a filter that matches nothing.
func ResolveFilter(s Scope, callerUserID int64, callerTeamID *int64) Filter {
	switch s {
	case Own:
		return Filter{Kind: MatchOwner, UserID: callerUserID}
	case Team:
		if callerTeamID == nil {
			return Filter{Kind: MatchNothing}
		}
		return Filter{Kind: MatchTeam, TeamID: *callerTeamID}
	case All:
		return Filter{Kind: MatchAll}
	default:
		return Filter{Kind: MatchNothing}
	}
}

// Matches evaluates the filter against one row given its owner and the
// owner's team.
func (f Filter) Matches(ownerUserID int64, ownerTeamID *int64) bool {
	switch f.Kind {
	case MatchOwner:
		return ownerUserID == f.UserID
	case MatchTeam:
		return ownerTeamID != nil && *ownerTeamID == f.TeamID
	case MatchAll:
		return true
	default:
		return false
	}
}

func (f Filter) MatchesNothing() bool {
	return f.Kind == MatchNothing
}

func (f Filter) String() string {
	switch f.Kind {
	case MatchOwner:
		return fmt.Sprintf("owner=%d", f.UserID)
	case MatchTeam:
		return fmt.Sprintf("team=%d", f.TeamID)
	default:
		return f.Kind.String()
	}
}

// Columns names the columns of a table the filter is applied to. When Team
// is empty, team membership is resolved through users.team_id of the owner.
type Columns struct {
	Owner string
	Team  string
}

// Apply returns a gorm scope restricting a query to the rows the filter matches.
func (f Filter) Apply(cols Columns) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch f.Kind {
		case MatchOwner:
			return db.Where(cols.Owner+" = ?", f.UserID)
		case MatchTeam:
			if cols.Team != "" {
				return db.Where(cols.Team+" = ?", f.TeamID)
			}
			members := db.Session(&gorm.Session{NewDB: true}).
				Table("users").
				Select("id").
				Where("team_id = ?", f.TeamID)
			return db.Where(cols.Owner+" IN (?)", members)
		case MatchAll:
			return db
		default:
			return db.Where("1 = 0")
		}
	}
}
