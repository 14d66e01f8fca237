package protocol

import "errors"

var (
	// ErrMissingDelimiter is returned when a frame has no '!' separator.
	ErrMissingDelimiter = errors.New("frame has no command delimiter")

	// ErrUnknownCommand is returned when the command token is not in the vocabulary.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrFrameTooLarge is returned when an encoded frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrMissingField is returned when a payload lacks a required key.
	ErrMissingField = errors.New("missing field")

	// ErrTypeMismatch is returned when a payload value has the wrong JSON type.
	ErrTypeMismatch = errors.New("type mismatch")
)
