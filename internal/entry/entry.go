package entry

import (
	"time"

	entryDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/entry"
)

const (
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

type Entry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Quantity    int64     `json:"quantity"`
	Status      string    `json:"status"`
	EntryDate   time.Time `json:"entry_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (e *Entry) CanBeReviewed() bool {
	return e.Status == StatusSubmitted
}

func NewEntry(userID int64, dto CreateEntryDTO) *Entry {
	now := time.Now().UTC()
	return &Entry{
		UserID:      userID,
		Title:       dto.Title,
		Description: dto.Description,
		Quantity:    dto.Quantity,
		Status:      StatusSubmitted,
		EntryDate:   dto.EntryDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ToDataModel(e *Entry) *entryDatamodel.Entry {
	return &entryDatamodel.Entry{
		ID:          e.ID,
		UserID:      e.UserID,
		Title:       e.Title,
		Description: e.Description,
		Quantity:    e.Quantity,
		Status:      e.Status,
		EntryDate:   e.EntryDate,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func FromDataModel(e *entryDatamodel.Entry) *Entry {
	return &Entry{
		ID:          e.ID,
		UserID:      e.UserID,
		Title:       e.Title,
		Description: e.Description,
		Quantity:    e.Quantity,
		Status:      e.Status,
		EntryDate:   e.EntryDate,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*entryDatamodel.Entry) []*Entry {
	result := make([]*Entry, len(rows))
	for i, e := range rows {
		result[i] = FromDataModel(e)
	}
	return result
}
