package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK    Code = "ok"
	Busy  Code = "busy"
	Error Code = "error" // generic fallback

	// Bring-up. Any of these halts the firmware.
	InitFailed    Code = "init_failed"
	InvalidConfig Code = "invalid_config"
	UnknownBus    Code = "unknown_bus"
	UnknownPin    Code = "unknown_pin"
	UnknownBoard  Code = "unknown_board"

	// Recoverable.
	SensingDisabled Code = "sensing_disabled"
	InvalidCommand  Code = "invalid_command"
	InvalidParams   Code = "invalid_params"
	InvalidPayload  Code = "invalid_payload"
	Unsupported     Code = "unsupported"
)

// E keeps a Code together with the failing operation and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += " (" + e.Err.Error() + ")"
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap annotates err with op and code. A nil err stays nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Fatal reports whether a code must stop bring-up.
func Fatal(c Code) bool {
	switch c {
	case InitFailed, InvalidConfig, UnknownBus, UnknownPin, UnknownBoard:
		return true
	}
	return false
}
