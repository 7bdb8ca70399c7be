package models

import "time"

// HistoryAction tags the kind of change a history entry records.
type HistoryAction string

const (
	ActionCreated       HistoryAction = "CREATED"
	ActionStatusUpdated HistoryAction = "STATUS_UPDATED"
	ActionUpdated       HistoryAction = "UPDATED"
	ActionDeleted       HistoryAction = "DELETED"
)

// BuyerHistory is an immutable audit entry for one change to a buyer.
// BuyerID is a weak reference: entries remain after the buyer is deleted.
type BuyerHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	BuyerID   string      `gorm:"size:36;not null;index" json:"buyerId"`
	ChangedBy string      `gorm:"size:36;not null;index" json:"changedBy"`
	ChangedAt time.Time   `gorm:"not null" json:"changedAt"`
	Diff      HistoryDiff `gorm:"type:text;serializer:json" json:"diff"`
}

// TableName keeps the singular table name used by the CRM schema.
func (BuyerHistory) TableName() string {
	return "buyer_history"
}

// HistoryDiff is the payload of a history entry. Exactly one of the
// action-specific fields is set, matching Action.
type HistoryDiff struct {
	Action       HistoryAction          `json:"action"`
	StatusChange *StatusChange          `json:"statusChange,omitempty"`
	Changes      map[string]FieldChange `json:"changes,omitempty"`
	CreatedData  *Buyer                 `json:"createdData,omitempty"`
	DeletedData  *Buyer                 `json:"deletedData,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// StatusChange records a status transition.
type StatusChange struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// FieldChange records the before and after value of one field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}
