package cache

import "fmt"

const keyPrefix = "partscout"

// JobKey holds the JSON of a finished job.
func JobKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s", keyPrefix, jobID)
}

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s:status", keyPrefix, jobID)
}

// RateLimitKey scopes a fixed-window counter to one client and window start.
func RateLimitKey(clientID string, window int64) string {
	return fmt.Sprintf("%s:ratelimit:%s:%d", keyPrefix, clientID, window)
}
