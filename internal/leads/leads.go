// Package leads carries lead-capture signals out of the conversation flow:
// contact requests and escalation topics are published to a durable queue
// and landed in an inbox table by the worker.
package leads

import (
	"time"

	"gorm.io/gorm"
)

type EventKind string

const (
	KindContact    EventKind = "contact"
	KindEscalation EventKind = "escalation"
)

// Event is the queue payload for one detected lead signal.
type Event struct {
	SessionID string    `json:"session_id"`
	ThreadID  string    `json:"thread_id"`
	Kind      EventKind `json:"kind"`
	Utterance string    `json:"utterance"`
	CreatedAt time.Time `json:"created_at"`
}

// Lead is the persisted inbox row the worker writes.
type Lead struct {
	ID        string    `gorm:"primaryKey;size:26"` // ULID
	SessionID string    `gorm:"size:26;index;not null"`
	ThreadID  string    `gorm:"size:26;index;not null"`
	Kind      string    `gorm:"type:varchar(16);index;not null"`
	Utterance string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (Lead) TableName() string { return "leads" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&Lead{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Insert(lead *Lead) error {
	return r.db.Create(lead).Error
}
