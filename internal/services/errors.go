// Package services holds the use-cases behind the HTTP transport: accepting
// inbound chat events, recording what the bot sends and auditing command runs.
// Handlers map the errors below onto HTTP status codes.
package services

import "errors"

var (
	// ErrEmptyText is returned for a message with no text after normalization.
	ErrEmptyText = errors.New("text is empty")

	// ErrTooLong is returned when a message exceeds MaxTextRunes.
	ErrTooLong = errors.New("text too long")

	// ErrUserRequired is returned when an event carries no user id.
	ErrUserRequired = errors.New("user id is required")

	// ErrDestinationRequired is returned for group messages and membership
	// events without a room id.
	ErrDestinationRequired = errors.New("destination id is required")

	// ErrDuplicateMessage is returned when a message id was already accepted
	// within the receipt TTL.
	ErrDuplicateMessage = errors.New("message already accepted")

	// ErrEngineUnavailable is returned when the engine no longer takes events.
	ErrEngineUnavailable = errors.New("engine unavailable")
)
