package zpy

import "fmt"

// ErrorKind is the closed set of engine rejection categories.
type ErrorKind int

const (
	// ErrInvalidArgument: malformed input shape.
	ErrInvalidArgument ErrorKind = iota
	// ErrDuplicateAction: an already-satisfied action was repeated.
	ErrDuplicateAction
	// ErrWrongPlayer: a role-restricted action by an unauthorized player.
	ErrWrongPlayer
	// ErrOutOfTurn: an action by someone other than the turn-holder.
	ErrOutOfTurn
	// ErrInvalidPlay: a rule violation with otherwise-correct actor and shape.
	ErrInvalidPlay
)

var errorKindNames = map[ErrorKind]string{
	ErrInvalidArgument: "INVALID_ARGUMENT",
	ErrDuplicateAction: "DUPLICATE_ACTION",
	ErrWrongPlayer:     "WRONG_PLAYER",
	ErrOutOfTurn:       "OUT_OF_TURN",
	ErrInvalidPlay:     "INVALID_PLAY",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_%d", int(k))
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ErrorKind) UnmarshalText(b []byte) error {
	for kind, name := range errorKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", string(b))
}

// Error is an engine rejection. Every rejection is a permanent, deterministic
// verdict for that exact (state, action) pair.
type Error struct {
	Kind ErrorKind `json:"kind"`
	Msg  string    `json:"msg,omitempty"`
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func errInvalidArg(msg string) *Error  { return &Error{Kind: ErrInvalidArgument, Msg: msg} }
func errDuplicate(msg string) *Error   { return &Error{Kind: ErrDuplicateAction, Msg: msg} }
func errWrongPlayer(msg string) *Error { return &Error{Kind: ErrWrongPlayer, Msg: msg} }
func errOutOfTurn() *Error             { return &Error{Kind: ErrOutOfTurn} }
func errInvalidPlay(msg string) *Error { return &Error{Kind: ErrInvalidPlay, Msg: msg} }
