package models

import (
	"encoding/json"
	"time"
)

// BulkActionLog is one audited bulk action outcome.
type BulkActionLog struct {
	ID        string          `db:"id" json:"id"`
	ViewID    string          `db:"view_id" json:"view_id"`
	UserID    *string         `db:"user_id" json:"user_id,omitempty"`
	Action    string          `db:"action" json:"action"`
	Active    bool            `db:"status_filter" json:"status_filter"`
	Target    *int            `db:"target_status" json:"target_status,omitempty"`
	IDs       json.RawMessage `db:"ids" json:"ids"`
	Count     int             `db:"id_count" json:"id_count"`
	Outcome   string          `db:"outcome" json:"outcome"`
	Error     *string         `db:"error" json:"error,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Notice is a user-facing notification, rendered by the UI as a toast.
type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Notice types.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

// SuccessNotice builds a success notification.
func SuccessNotice(message string) *Notice {
	return &Notice{Type: NoticeSuccess, Message: message}
}

// ErrorNotice builds an error notification.
func ErrorNotice(message string) *Notice {
	return &Notice{Type: NoticeError, Message: message}
}

// InfoNotice builds an informational notification, used for confirmation
// prompts.
func InfoNotice(message string) *Notice {
	return &Notice{Type: NoticeInfo, Message: message}
}
