package matrix

import (
	"context"
	"encoding/json"
	"regexp"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/common/validation"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
)

var ErrDuplicateUpdate = errors.NewValidationError("resource and action pair appears more than once in the batch", errors.ErrCodeDuplicateUpdate)

// Actor is the administrator performing a change, denormalized into every
// audit entry it produces.
type Actor struct {
	UserID    int64
	Name      string
	Email     string
	IPAddress string
	UserAgent string
}

// Update is the desired value of one matrix cell of a role. An empty scope
// is accepted only together with granted=false.
type Update struct {
	ResourceID int64       `json:"resource_id"`
	ActionID   int64       `json:"action_id"`
	Granted    bool        `json:"granted"`
	Scope      scope.Scope `json:"scope"`
}

type BatchRequest struct {
	Updates []Update `json:"updates"`
}

type BatchResponse struct {
	RoleID  int64 `json:"role_id"`
	Changed int   `json:"changed"`
}

type CreateRoleDTO struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Hierarchy   int    `json:"hierarchy"`
}

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,49}$`)

func (dto *CreateRoleDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().Custom(func(value interface{}) *errors.AppError {
		if !roleNamePattern.MatchString(value.(string)) {
			return errors.NewValidationFieldError("name", "name must be lowercase letters, digits and underscores", errors.ErrCodeInvalidRoleName)
		}
		return nil
	})
	v.Field("display_name", dto.DisplayName).Required().MaxLength(100)
	v.Field("hierarchy", int64(dto.Hierarchy)).MinInt(0, errors.ErrCodeValidationFailed)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// RoleResponse wraps a role together with its active permission rows.
type RoleResponse struct {
	Role        *permission.Role         `json:"role"`
	Permissions []*permission.Permission `json:"permissions"`
}

// Repositories are the transaction-bound repositories a unit of work hands
// to its callback.
type Repositories struct {
	Permissions permission.RepositoryAPI
	Audit       audit.RepositoryAPI
}

// UnitOfWork runs fn in one transaction. fn returning an error rolls back
// every write made through the repositories.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}

// changeKind classifies a transition between two effective values.
func changeKind(before, after permission.Value) (audit.Kind, bool) {
	switch {
	case before == after:
		return "", false
	case !before.Granted && after.Granted:
		return audit.KindGranted, true
	case before.Granted && !after.Granted:
		return audit.KindRevoked, true
	default:
		return audit.KindUpdated, true
	}
}

func marshalValue(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
