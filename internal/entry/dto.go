package entry

import (
	"time"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/common/validation"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type CreateEntryDTO struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Quantity    int64     `json:"quantity"`
	EntryDate   time.Time `json:"entry_date"`
}

func (dto CreateEntryDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("title", dto.Title).Required().MaxLength(200)
	v.Field("description", dto.Description).MaxLength(2000)
	v.Field("quantity", dto.Quantity).Positive(errors.ErrCodeValidationFailed)
	v.Field("entry_date", dto.EntryDate).Required().Before(time.Now().Add(24*time.Hour), errors.ErrCodeValidationFailed)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ListFilter narrows a listing beyond the caller's scope.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

func (f ListFilter) Validate() error {
	if f.Status == "" {
		return nil
	}
	v := validation.NewValidator()
	v.Field("status", f.Status).OneOf(errors.ErrCodeValidationFailed, StatusSubmitted, StatusApproved, StatusRejected)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type ListResponse struct {
	Entries []*Entry `json:"entries"`
	Total   int64    `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}
