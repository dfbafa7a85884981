package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	auditDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/audit"
)

type Kind string

const (
	KindGranted Kind = "granted"
	KindRevoked Kind = "revoked"
	KindUpdated Kind = "updated"
	KindCreated Kind = "created"
	KindDeleted Kind = "deleted"
)

func Kinds() []string {
	return []string{string(KindGranted), string(KindRevoked), string(KindUpdated), string(KindCreated), string(KindDeleted)}
}

func (k Kind) Valid() bool {
	for _, v := range Kinds() {
		if string(k) == v {
			return true
		}
	}
	return false
}

// GenesisHash is the prev_hash of the first entry of the chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry records one committed change. Entries are never updated or deleted.
type Entry struct {
	ID             int64           `json:"id"`
	ActorUserID    int64           `json:"actor_user_id"`
	ActorName      string          `json:"actor_name"`
	ActorEmail     string          `json:"actor_email"`
	Kind           Kind            `json:"action_kind"`
	ResourceType   string          `json:"resource_type"`
	ResourceAction string          `json:"resource_action,omitempty"`
	RoleID         *int64          `json:"role_id,omitempty"`
	TargetUserID   *int64          `json:"target_user_id,omitempty"`
	OldValue       json.RawMessage `json:"old_value,omitempty"`
	NewValue       json.RawMessage `json:"new_value,omitempty"`
	IPAddress      string          `json:"ip_address,omitempty"`
	UserAgent      string          `json:"user_agent,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	PrevHash       string          `json:"prev_hash"`
	Hash           string          `json:"hash"`
}

// ComputeHash chains the entry to prevHash. Every persisted field except
// the id takes part.
func ComputeHash(prevHash string, e *Entry) string {
	fields := []string{
		prevHash,
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
		strconv.FormatInt(e.CreatedAt.UnixMicro(), 10),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optionalText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func rawText(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}

func ToDataModel(e *Entry) *auditDatamodel.AuditLog {
	return &auditDatamodel.AuditLog{
		ID:             e.ID,
		ActorUserID:    e.ActorUserID,
		ActorName:      e.ActorName,
		ActorEmail:     e.ActorEmail,
		ActionKind:     string(e.Kind),
		ResourceType:   e.ResourceType,
		ResourceAction: e.ResourceAction,
		RoleID:         e.RoleID,
		TargetUserID:   e.TargetUserID,
		OldValue:       optionalText(e.OldValue),
		NewValue:       optionalText(e.NewValue),
		IPAddress:      e.IPAddress,
		UserAgent:      e.UserAgent,
		PrevHash:       e.PrevHash,
		Hash:           e.Hash,
		CreatedAt:      e.CreatedAt,
	}
}

func FromDataModel(m *auditDatamodel.AuditLog) *Entry {
	return &Entry{
		ID:             m.ID,
		ActorUserID:    m.ActorUserID,
		ActorName:      m.ActorName,
		ActorEmail:     m.ActorEmail,
		Kind:           Kind(m.ActionKind),
		ResourceType:   m.ResourceType,
		ResourceAction: m.ResourceAction,
		RoleID:         m.RoleID,
		TargetUserID:   m.TargetUserID,
		OldValue:       rawText(m.OldValue),
		NewValue:       rawText(m.NewValue),
		IPAddress:      m.IPAddress,
		UserAgent:      m.UserAgent,
		CreatedAt:      m.CreatedAt,
		PrevHash:       m.PrevHash,
		Hash:           m.Hash,
	}
}

func FromDataModelSlice(rows []*auditDatamodel.AuditLog) []*Entry {
	out := make([]*Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromDataModel(r))
	}
	return out
}
