package config

import "fmt"

// Code identifies a class of configuration or startup failure.
type Code int

const (
	CodeUnknown  Code = 1000
	CodeRead     Code = 1001
	CodeParse    Code = 1002
	CodeInvalid  Code = 1003
	CodeEnvFile  Code = 1004
	CodeHardware Code = 2001
	CodeBroker   Code = 2002
	CodeJournal  Code = 2003
)

// Error is a coded configuration or startup error.
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an *Error.
func NewError(code Code, op, msg string, err error) error {
	return &Error{Code: code, Op: op, Msg: msg, Err: err}
}
