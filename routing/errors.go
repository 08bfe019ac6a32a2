package routing

import "errors"

var (
	// ErrResourceNotFound indicates the topic has no routing resource.
	ErrResourceNotFound = errors.New("routing resource not found")
)
