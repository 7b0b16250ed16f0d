package notify

import (
	"time"

	"compress-service/ddd/domain/vo"
)

// EventType 事件类型
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventFinal    EventType = "final"
)

// Event is the message published for every job update.
type Event struct {
	Type     EventType            `json:"type"`
	JobID    string               `json:"job_id"`
	UserID   string               `json:"user_id"`
	FileName string               `json:"file_name,omitempty"`
	Stage    vo.Stage             `json:"stage,omitempty"`
	Text     string               `json:"text,omitempty"`
	Progress *vo.ProgressSnapshot `json:"progress,omitempty"`
	Report   *vo.FinalReport      `json:"report,omitempty"`
	At       time.Time            `json:"at"`
}
