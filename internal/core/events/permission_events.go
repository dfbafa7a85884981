package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePermissionsChanged = "permissions.changed"
)

// PermissionsChangedEvent is published after a committed change to the
// permission store. RoleID is zero when every role may be affected.
type PermissionsChangedEvent struct {
	BaseEvent
	RoleID  int64 `json:"role_id"`
	Changed int   `json:"changed"`
	ActorID int64 `json:"actor_id"`
}

func NewPermissionsChangedEvent(roleID int64, changed int, actorID int64) *PermissionsChangedEvent {
	return &PermissionsChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionsChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"role_id":  roleID,
				"changed":  changed,
				"actor_id": actorID,
			},
		},
		RoleID:  roleID,
		Changed: changed,
		ActorID: actorID,
	}
}
