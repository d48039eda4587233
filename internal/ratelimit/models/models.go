package models

import (
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// ClientKey scopes a bucket to one client IP.
func ClientKey(ip string) string {
	return "ratelimit:ip:" + ip
}

type ExceededResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	RetryAfter  int    `json:"retry_after"`
}
