package redis

import "github.com/xraph/courier/message"

// Key prefix for message hashes.
const prefixMessage = "courier:msg:"

// zRetryable holds pending and failed message IDs scored by
// attempt_count first and received_at second.
const zRetryable = "courier:z:msg:retryable"

// Key prefix for per-status ID sets.
const sStatus = "courier:s:msg:status:" // + status

// attemptWeight spaces attempt counts far enough apart that the
// received_at seconds never cross into the next attempt bucket.
const attemptWeight = 1e10

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// statusKey returns the set key holding IDs in status.
func statusKey(status message.Status) string {
	return sStatus + string(status)
}
