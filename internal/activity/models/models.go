package models

import (
	"time"

	id "lifeflow/pkg/domain"
)

// Action tags what a user did.
type Action string

const (
	ActionLogin           Action = "login"
	ActionLogout          Action = "logout"
	ActionCreateDonor     Action = "create_donor"
	ActionUpdateDonor     Action = "update_donor"
	ActionDeleteDonor     Action = "delete_donor"
	ActionCreateRequest   Action = "create_request"
	ActionUpdateRequest   Action = "update_request"
	ActionDeleteRequest   Action = "delete_request"
	ActionUpdateStatus    Action = "update_status"
	ActionCreateInventory Action = "create_inventory"
	ActionUpdateInventory Action = "update_inventory"
	ActionDeleteInventory Action = "delete_inventory"
	ActionViewDashboard   Action = "view_dashboard"
	ActionViewProfile     Action = "view_profile"
	ActionUpdateProfile   Action = "update_profile"
)

// EntityType names the kind of record an entry refers to.
type EntityType string

const (
	EntityDonor     EntityType = "donor"
	EntityRequest   EntityType = "request"
	EntityInventory EntityType = "inventory"
	EntityUser      EntityType = "user"
	EntitySystem    EntityType = "system"
)

// Entry is one append-only activity log record. It is never mutated after
// it has been written.
type Entry struct {
	ID          id.ActivityID  `json:"id"`
	UserID      id.UserID      `json:"userId"`
	Action      Action         `json:"action"`
	Description string         `json:"description"`
	EntityType  EntityType     `json:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
	Device      string         `json:"device,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// NewEntry builds an entry about an entity. Client metadata and timestamps
// are filled in by the recorder.
func NewEntry(userID id.UserID, action Action, description string, entityType EntityType, entityID string) Entry {
	return Entry{
		UserID:      userID,
		Action:      action,
		Description: description,
		EntityType:  entityType,
		EntityID:    entityID,
	}
}

// WithMetadata returns a copy of e carrying key=value in its metadata.
func (e Entry) WithMetadata(key string, value any) Entry {
	md := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}
