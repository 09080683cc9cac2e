package domain

import "time"

// IdempotencyKey records the response of a processed batch submission so a
// client retry with the same Idempotency-Key gets the same batch back.
type IdempotencyKey struct {
	Key          string    `json:"key"`
	UserID       int64     `json:"user_id"`
	RequestHash  string    `json:"request_hash"`
	ResponseData string    `json:"response_data"`
	StatusCode   int       `json:"status_code"`
	ProcessedAt  time.Time `json:"processed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (k *IdempotencyKey) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}
