package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	auditDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/audit"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/common/validation"
)

type RepositoryAPI interface {
	// Append serializes appends on the chain head: build receives the locked
	// head and returns the entry to insert, and the head then moves to it.
	Append(ctx context.Context, build func(head *auditDatamodel.ChainHead) (*auditDatamodel.AuditLog, error)) error
	// Head returns the current chain head, or nil before the first append.
	Head(ctx context.Context) (*auditDatamodel.ChainHead, error)
	Find(ctx context.Context, filter Filter) ([]*auditDatamodel.AuditLog, int64, error)
	// ListAfter returns up to limit entries with id > afterID in id order.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*auditDatamodel.AuditLog, error)
}

const verifyBatchSize = 500

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// WithRepository returns a service bound to repo, typically a
// transaction-scoped repository, so appends commit with the change.
func (s *Service) WithRepository(repo RepositoryAPI) *Service {
	return &Service{repo: repo, logger: s.logger, now: s.now}
}

// Append chains e to the newest entry and stores it. ID, CreatedAt,
// PrevHash and Hash are filled in on success.
func (s *Service) Append(ctx context.Context, e *Entry) error {
	v := validation.NewValidator()
	v.Field("actor_user_id", e.ActorUserID).Required().Positive(errors.ErrCodeValidationFailed)
	v.Field("actor_email", e.ActorEmail).Required()
	v.Field("action_kind", string(e.Kind)).Required().OneOf(errors.ErrCodeValidationFailed, Kinds()...)
	v.Field("resource_type", e.ResourceType).Required()
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)

	var row *auditDatamodel.AuditLog
	err := s.repo.Append(ctx, func(head *auditDatamodel.ChainHead) (*auditDatamodel.AuditLog, error) {
		e.PrevHash = head.Hash
		e.Hash = ComputeHash(e.PrevHash, e)
		row = ToDataModel(e)
		return row, nil
	})
	if err != nil {
		s.logger.Error("failed to append audit entry", "error", err, "action_kind", e.Kind, "resource_type", e.ResourceType)
		return errors.NewInternalError("failed to append audit entry", err)
	}
	e.ID = row.ID
	return nil
}

func (f *Filter) normalize() *errors.AppError {
	v := validation.NewValidator()
	if f.ActionKind != "" {
		v.Field("action", string(f.ActionKind)).OneOf(errors.ErrCodeValidationFailed, Kinds()...)
	}
	v.Field("from", f.From).Before(f.To, errors.ErrCodeInvalidDateRange)
	if f.RoleID != nil {
		v.Field("role_id", *f.RoleID).Positive(errors.ErrCodeValidationFailed)
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return nil
}

// Query returns one page of matching entries, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) (*Page, error) {
	if appErr := filter.normalize(); appErr != nil {
		return nil, appErr
	}
	rows, total, err := s.repo.Find(ctx, filter)
	if err != nil {
		s.logger.Error("failed to query audit log", "error", err)
		return nil, errors.NewInternalError("failed to query audit log", err)
	}
	return &Page{
		Entries: FromDataModelSlice(rows),
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

var csvHeader = []string{
	"id", "created_at", "actor_user_id", "actor_name", "actor_email",
	"action_kind", "resource_type", "resource_action", "role_id", "target_user_id",
	"old_value", "new_value", "ip_address", "user_agent", "hash",
}

// ExportCSV serializes exactly what Query returns for filter.
func (s *Service) ExportCSV(ctx context.Context, filter Filter) ([]byte, error) {
	page, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := writeCSV(w, page.Entries, true); err != nil {
		return nil, errors.NewInternalError("failed to export audit log", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV streams every entry matching filter to out, ignoring its limit
// and offset. Entries appended after the call starts are not included.
func (s *Service) WriteCSV(ctx context.Context, filter Filter, out io.Writer) (int, error) {
	if filter.To.IsZero() {
		filter.To = s.now().UTC()
	}
	filter.Limit = MaxLimit
	filter.Offset = 0

	w := csv.NewWriter(out)
	written := 0
	for {
		page, err := s.Query(ctx, filter)
		if err != nil {
			return written, err
		}
		if err := writeCSV(w, page.Entries, filter.Offset == 0); err != nil {
			return written, errors.NewInternalError("failed to export audit log", err)
		}
		written += len(page.Entries)
		if len(page.Entries) < filter.Limit {
			return written, nil
		}
		filter.Offset += filter.Limit
	}
}

func writeCSV(w *csv.Writer, entries []*Entry, header bool) error {
	if header {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
			strconv.FormatInt(e.ActorUserID, 10),
			e.ActorName,
			e.ActorEmail,
			string(e.Kind),
			e.ResourceType,
			e.ResourceAction,
			optionalInt(e.RoleID),
			optionalInt(e.TargetUserID),
			string(e.OldValue),
			string(e.NewValue),
			e.IPAddress,
			e.UserAgent,
			e.Hash,
		}
		for i := range record {
			record[i] = sanitizeCell(record[i])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// sanitizeCell keeps spreadsheet applications from evaluating a cell.
func sanitizeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

// Verify walks the whole chain in id order and reports the first entry
// whose link or content hash does not match. The chain must also reach the
// head recorded when the walk started, so a truncated tail is reported too.
func (s *Service) Verify(ctx context.Context) (*VerifyReport, error) {
	head, err := s.repo.Head(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to read audit chain head", err)
	}
	headReached := head == nil || head.LastID == 0

	report := &VerifyReport{Valid: true}
	prevHash := GenesisHash
	var afterID int64

	for {
		rows, err := s.repo.ListAfter(ctx, afterID, verifyBatchSize)
		if err != nil {
			return nil, errors.NewInternalError("failed to read audit log", err)
		}
		for _, row := range rows {
			e := FromDataModel(row)
			report.Checked++
			switch {
			case e.PrevHash != prevHash:
				return broken(report, e.ID, "prev_hash does not link to the preceding entry"), nil
			case ComputeHash(e.PrevHash, e) != e.Hash:
				return broken(report, e.ID, "content hash mismatch"), nil
			}
			if !headReached && e.ID == head.LastID {
				if e.Hash != head.Hash {
					return broken(report, e.ID, "entry does not match the chain head"), nil
				}
				headReached = true
			}
			prevHash = e.Hash
			afterID = e.ID
		}
		if len(rows) < verifyBatchSize {
			if !headReached {
				return broken(report, head.LastID, "newest entry is missing"), nil
			}
			return report, nil
		}
	}
}

func broken(report *VerifyReport, id int64, reason string) *VerifyReport {
	report.Valid = false
	report.FirstBrokenID = &id
	report.Reason = reason
	return report
}
