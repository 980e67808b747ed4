// Package protocol implements the line protocol between the orchestrator
// and the actuator daemon.
//
//	request:  M<motor>_<CW|CCW>_<turns>\n
//	reply:    DONE\n | ERROR: <detail>\n
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter terminates every request and reply.
const Delimiter = '\n'

// Reply texts.
const (
	ReplyDone   = "DONE"
	errorPrefix = "ERROR:"
)

// ErrMalformed is returned for lines that do not follow the command grammar.
var ErrMalformed = errors.New("protocol: malformed command")

// Sense is the rotation sense of a motor.
type Sense string

const (
	CW  Sense = "CW"
	CCW Sense = "CCW"
)

// Valid reports whether s is CW or CCW.
func (s Sense) Valid() bool {
	return s == CW || s == CCW
}

// Clockwise reports whether s is CW.
func (s Sense) Clockwise() bool {
	return s == CW
}

// Command is one motor actuation: a motor index, a sense and a number of
// base turns.
type Command struct {
	Motor int
	Sense Sense
	Turns int
}

// String returns the wire form without the delimiter.
func (c Command) String() string {
	return fmt.Sprintf("M%d_%s_%d", c.Motor, c.Sense, c.Turns)
}

// Line returns the wire form including the delimiter.
func (c Command) Line() []byte {
	return append([]byte(c.String()), Delimiter)
}

// ParseCommand decodes one request line. motorCount bounds the motor index.
// Surrounding whitespace, including the delimiter, is ignored.
func ParseCommand(line string, motorCount int) (Command, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, "_")
	if len(parts) != 3 {
		return Command{}, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrMalformed, len(parts), line)
	}
	head, sense, turns := parts[0], Sense(parts[1]), parts[2]

	if !strings.HasPrefix(head, "M") {
		return Command{}, fmt.Errorf("%w: missing M prefix in %q", ErrMalformed, line)
	}
	motor, err := strconv.Atoi(head[1:])
	if err != nil {
		return Command{}, fmt.Errorf("%w: motor index %q is not a number", ErrMalformed, head[1:])
	}
	if motor < 0 || motor >= motorCount {
		return Command{}, fmt.Errorf("%w: motor index %d outside [0,%d)", ErrMalformed, motor, motorCount)
	}
	if !sense.Valid() {
		return Command{}, fmt.Errorf("%w: direction %q is not CW or CCW", ErrMalformed, parts[1])
	}
	n, err := strconv.Atoi(turns)
	if err != nil {
		return Command{}, fmt.Errorf("%w: turn count %q is not a number", ErrMalformed, turns)
	}
	if n <= 0 {
		return Command{}, fmt.Errorf("%w: turn count %d must be positive", ErrMalformed, n)
	}
	return Command{Motor: motor, Sense: sense, Turns: n}, nil
}

// ErrorReply formats an error reply line.
func ErrorReply(err error) []byte {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	return []byte(errorPrefix + " " + msg + string(Delimiter))
}

// DoneReply returns the success reply line.
func DoneReply() []byte {
	return []byte(ReplyDone + string(Delimiter))
}

// ReplyKind classifies a reply line.
type ReplyKind int

const (
	Unexpected ReplyKind = iota
	Done
	Error
)

// ClassifyReply trims a reply and returns its kind and, for errors, the
// actuator's message.
func ClassifyReply(reply string) (ReplyKind, string) {
	reply = strings.TrimSpace(reply)
	switch {
	case reply == ReplyDone:
		return Done, ""
	case strings.HasPrefix(reply, errorPrefix):
		return Error, strings.TrimSpace(strings.TrimPrefix(reply, errorPrefix))
	}
	return Unexpected, reply
}
