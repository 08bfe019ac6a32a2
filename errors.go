package pushmonitor

import "errors"

var (
	// ErrPushNotFound indicates the topic has no push in the monitor's map.
	ErrPushNotFound = errors.New("offline push not found")

	// ErrPushAlreadyExists indicates a non-errored push already exists for the
	// topic; a new push cannot be started until the previous one terminates.
	ErrPushAlreadyExists = errors.New("offline push already exists")

	// ErrIllegalStatusTransition indicates a status update violates the push
	// state machine.
	ErrIllegalStatusTransition = errors.New("illegal push status transition")

	// ErrUnknownStrategy indicates no decider is registered for the strategy.
	ErrUnknownStrategy = errors.New("unknown offline push strategy")
)
