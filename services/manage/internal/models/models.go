package models

import (
	"time"
)

// EntryStatus represents one recorded intrusion observation at a drone port.
// Rows are immutable after creation and are never deleted by this service.
type EntryStatus struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	Port     string    `json:"port" gorm:"Column:port;index"`
	Datetime time.Time `json:"datetime" gorm:"Column:datetime;index"`
	Detect   bool      `json:"detect" gorm:"Column:detect"`
	ReportID *string   `json:"report_id,omitempty" gorm:"Column:report_id"`
	Events   []Event   `json:"events" gorm:"foreignKey:EntStatID"`
}

// TableName keeps the table name used by the relational schema
func (EntryStatus) TableName() string {
	return "entry_status_information"
}

// Event represents one detected object belonging to an entry status.
// Events are owned exclusively by their parent status and inserted in the
// same transaction, so a partially populated event set is never visible.
type Event struct {
	ID         uint    `json:"-" gorm:"primaryKey"`
	EntStatID  uint    `json:"-" gorm:"Column:ent_stat_id;index"`
	ObjectID   string  `json:"id" gorm:"Column:object_id"`
	ObjectType string  `json:"type" gorm:"Column:object_type"`
	Detect     bool    `json:"detect" gorm:"Column:detect"`
	Location   *string `json:"location,omitempty" gorm:"Column:location"`
}

// TableName keeps the table name used by the relational schema
func (Event) TableName() string {
	return "event_information"
}

// Report represents an uploaded report file and the durable endpoint it is
// retrievable from. A report is never mutated after creation and holds no
// back-reference to the statuses that point at it.
type Report struct {
	ReportID  string    `json:"report_id" gorm:"primaryKey;Column:report_id"`
	Endpoint  string    `json:"endpoint" gorm:"Column:endpoint"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationOutbox records a notification payload whose synchronous relay
// to the notify service failed. The worker retries undelivered rows; delivery
// state never affects the already committed entry status rows.
type NotificationOutbox struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Payload   string    `json:"payload" gorm:"Column:payload"`
	Attempts  int       `json:"attempts" gorm:"Column:attempts"`
	Delivered bool      `json:"delivered" gorm:"Column:delivered;index"`
	LastError string    `json:"last_error" gorm:"Column:last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the table name used by the relational schema
func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}

// StatusEvent is the wire shape of one detection entry on the ingestion API
type StatusEvent struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Detect   bool    `json:"detect"`
	Location *string `json:"location,omitempty"`
}

// StatusPostRequest is the body accepted by the ingestion endpoint
type StatusPostRequest struct {
	Port     string        `json:"port" binding:"required"`
	Datetime string        `json:"datetime" binding:"required"`
	Detect   bool          `json:"detect"`
	Events   []StatusEvent `json:"event"`
	ReportID string        `json:"report_id"`
}

// EntryStatusView is one row returned by the query endpoint, aggregating the
// status fields with its events and the resolved report endpoint
type EntryStatusView struct {
	Port           string        `json:"port"`
	Datetime       time.Time     `json:"datetime"`
	Detect         bool          `json:"detect"`
	ReportEndpoint *string       `json:"report_endpoint"`
	Events         []StatusEvent `json:"events"`
}

// NotificationPayload is the transient payload relayed to the notify service.
// It is built fresh per ingestion call and never persisted except as an
// outbox record after a failed relay.
type NotificationPayload struct {
	Port           string        `json:"port"`
	Datetime       string        `json:"datetime"`
	Detect         bool          `json:"detect"`
	Events         []StatusEvent `json:"event"`
	ReportEndpoint string        `json:"report_endpoint"`
}
