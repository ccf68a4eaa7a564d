package conversation

import (
	"encoding/json"
	"time"

	"github.com/driftloop/agentcore/pkg/model"
)

// snapshot is the canonical on-disk shape: JSON, UTF-8, ISO-8601
// datetimes, lowercase enum strings (spec.md §6 Persistence format).
type snapshot struct {
	System             string              `json:"system,omitempty"`
	Messages           []model.Message     `json:"messages"`
	MaxHistoryMessages *int                `json:"max_history_messages,omitempty"`
	CachingEnabled     bool                `json:"caching_enabled"`
	CreatedAt          string              `json:"created_at"`
	LastModifiedAt     string              `json:"last_modified_at"`
}

const isoSeconds = "2006-01-02T15:04:05Z07:00"

// ToDict converts the conversation to its canonical JSON form. Content
// blocks are already canonical dicts (numbers/strings/bools/nulls/lists/
// maps only) via ContentBlock's JSON tags — no SDK-typed objects escape.
func (c *Conversation) ToDict() ([]byte, error) {
	snap := snapshot{
		System:             c.System,
		Messages:           c.Messages,
		MaxHistoryMessages: c.Config.MaxHistoryMessages,
		CachingEnabled:     c.Config.CachingEnabled,
		CreatedAt:          c.Config.CreatedAt.Format(isoSeconds),
		LastModifiedAt:     c.Config.LastModifiedAt.Format(isoSeconds),
	}
	return json.MarshalIndent(snap, "", "  ")
}

// FromDict is ToDict's inverse. It is tolerant of missing optional
// fields, so an older snapshot without max_history_messages still loads.
func FromDict(data []byte) (*Conversation, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	cfg := Config{
		MaxHistoryMessages: snap.MaxHistoryMessages,
		CachingEnabled:     snap.CachingEnabled,
	}
	if t, err := time.Parse(isoSeconds, snap.CreatedAt); err == nil {
		cfg.CreatedAt = t
	}
	if t, err := time.Parse(isoSeconds, snap.LastModifiedAt); err == nil {
		cfg.LastModifiedAt = t
	} else {
		cfg.LastModifiedAt = cfg.CreatedAt
	}

	return &Conversation{
		System:   snap.System,
		Messages: snap.Messages,
		Config:   cfg,
	}, nil
}
