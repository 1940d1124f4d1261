package job

import (
	"encoding/json"
	"time"
)

// Job is a queued request that failed and was parked for manual retry.
type Job struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
