package statusstore

import "errors"

var (
	// ErrPushStatusNotFound indicates no push status is persisted for the topic.
	ErrPushStatusNotFound = errors.New("offline push status not found")
)
