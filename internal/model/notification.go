package model

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Event     string          `json:"event"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Channel   string          `json:"channel"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}
