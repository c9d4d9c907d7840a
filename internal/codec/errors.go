package codec

import (
	"errors"
	"fmt"
)

// Domain errors for the codec package.
var (
	// ErrUnknownCommand is returned by EncodeCommand for an unrecognised
	// command kind.
	ErrUnknownCommand = errors.New("codec: unknown command")

	// ErrInvalidArgs is returned by EncodeCommand when args does not match
	// the shape expected for the command kind.
	ErrInvalidArgs = errors.New("codec: invalid command args")
)

// DecodeError describes why a topic/payload pair could not be turned into
// an Event. It is never fatal — callers log and count it, then drop the
// message.
type DecodeError struct {
	Topic   string
	Payload []byte
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: decode %q: %s: %v", e.Topic, e.Reason, e.Err)
	}
	return fmt.Sprintf("codec: decode %q: %s", e.Topic, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(topic string, payload []byte, reason string, err error) *DecodeError {
	return &DecodeError{Topic: topic, Payload: payload, Reason: reason, Err: err}
}
