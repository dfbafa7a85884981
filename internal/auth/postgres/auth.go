package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/auth"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
)

// Repository reads identity data with plain SQL. db is opened with the
// pgx driver in production; the bind style follows the driver name.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) auth.RepositoryAPI {
	return &Repository{db: db}
}

const credentialsQuery = `SELECT id, password_hash, is_active FROM users WHERE email = ?`

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var creds auth.Credentials
	if err := r.db.GetContext(ctx, &creds, r.db.Rebind(credentialsQuery), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &creds, nil
}

type profileRow struct {
	ID        int64         `db:"id"`
	Email     string        `db:"email"`
	Name      string        `db:"name"`
	RoleID    int64         `db:"role_id"`
	RoleName  string        `db:"role_name"`
	TeamID    sql.NullInt64 `db:"team_id"`
	IsActive  bool          `db:"is_active"`
	CreatedAt sql.NullTime  `db:"created_at"`
	UpdatedAt sql.NullTime  `db:"updated_at"`
}

const profileQuery = `
SELECT u.id, u.email, u.name, u.role_id, r.name AS role_name, u.team_id,
       u.is_active, u.created_at, u.updated_at
FROM users u
JOIN roles r ON r.id = u.role_id
WHERE u.id = ?`

func (r *Repository) GetProfile(ctx context.Context, userID int64) (*user.Profile, error) {
	var row profileRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(profileQuery), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	p := &user.Profile{
		ID:        row.ID,
		Email:     row.Email,
		Name:      row.Name,
		RoleID:    row.RoleID,
		RoleName:  row.RoleName,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.TeamID.Valid {
		teamID := row.TeamID.Int64
		p.TeamID = &teamID
	}
	return p, nil
}
