package gen

import (
	"errors"
	"fmt"
)

// ErrTooManyInstructions is the terminal error returned when the emitted
// program would exceed the generator's instruction capacity. It is a fatal
// condition distinct from the numeric parse error codes.
var ErrTooManyInstructions = errors.New("program exceeds the instruction capacity")

// Parse and semantic error codes. The numeric code is the sole diagnostic
// surface of the generator.
const (
	ErrPeriodExpected   = 1
	ErrEqExpected       = 2
	ErrNumberExpected   = 3
	ErrIdentExpected    = 4
	ErrSemicolonMissing = 5
	ErrBecomesExpected  = 6
	ErrAssignToNonVar   = 7
	ErrCallOfNonProc    = 8
	ErrEndExpected      = 9
	ErrThenExpected     = 10
	ErrDoExpected       = 11
	ErrRelOpExpected    = 12
	ErrUndeclaredIdent  = 13
	ErrBadFactor        = 14
	ErrRparenExpected   = 15
	ErrProcInExpression = 16
	ErrWriteOfProc      = 17
	ErrReadOfNonVar     = 18
	ErrNumberTooLarge   = 19
)

// messages maps error codes to their human-readable descriptions.
var messages = map[int]string{
	ErrPeriodExpected:   "period expected",
	ErrEqExpected:       "'=' expected after constant name",
	ErrNumberExpected:   "'=' must be followed by a number",
	ErrIdentExpected:    "identifier expected",
	ErrSemicolonMissing: "';' expected",
	ErrBecomesExpected:  "':=' expected",
	ErrAssignToNonVar:   "assignment target must be a variable",
	ErrCallOfNonProc:    "call target must be a procedure",
	ErrEndExpected:      "'end' expected",
	ErrThenExpected:     "'then' expected",
	ErrDoExpected:       "'do' expected",
	ErrRelOpExpected:    "relational operator expected",
	ErrUndeclaredIdent:  "undeclared identifier",
	ErrBadFactor:        "factor must be an identifier, number, or '('",
	ErrRparenExpected:   "')' expected",
	ErrProcInExpression: "procedures cannot appear in expressions",
	ErrWriteOfProc:      "procedures cannot be written",
	ErrReadOfNonVar:     "'read' target must be a variable",
	ErrNumberTooLarge:   "number out of range",
}

// Error is a generation failure identified by a numeric code.
type Error struct {
	// Code is the numeric error code, in the range 1 through 19.
	Code int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("error %d: %s", e.Code, e.Message())
}

// Message returns the human-readable description for the error code.
func (e *Error) Message() string {
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return "unknown error"
}

// codeError returns the error value for the given numeric code.
func codeError(code int) error {
	return &Error{Code: code}
}

// ErrorCode extracts the numeric code from a generation error.
// It returns 0 if err is nil or does not carry a code.
func ErrorCode(err error) int {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	return 0
}
