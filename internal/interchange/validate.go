package interchange

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	ReasonEmptyInput         Reason = "empty_input"
	ReasonHeaderOnly         Reason = "header_only"
	ReasonUnrecognizedSchema Reason = "unrecognized_schema"
)

var (
	ErrEmptyInput         = errors.New("empty input")
	ErrHeaderOnlyInput    = errors.New("header-only input")
	ErrUnrecognizedSchema = errors.New("unrecognized schema")
)

// Reason is the structured cause of a failed validation.
type Reason string

type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Unwrap().Error()
	}
	return fmt.Sprintf("%v: %s", e.Unwrap(), e.Detail)
}

func (e *ValidationError) Unwrap() error {
	switch e.Reason {
	case ReasonEmptyInput:
		return ErrEmptyInput
	case ReasonHeaderOnly:
		return ErrHeaderOnlyInput
	default:
		return ErrUnrecognizedSchema
	}
}

// Validate inspects the header and the first data row before a full decode.
// It returns nil or a *ValidationError.
func Validate(text string) error {
	if strings.TrimSpace(trimBOM(text)) == "" {
		return &ValidationError{Reason: ReasonEmptyInput}
	}

	r := newReader(text)
	header, err := nextRow(r)
	if err != nil {
		return &ValidationError{Reason: ReasonUnrecognizedSchema, Detail: err.Error()}
	}
	if header == nil {
		return &ValidationError{Reason: ReasonEmptyInput}
	}
	if _, ok := matchHeader(header); !ok {
		return &ValidationError{
			Reason: ReasonUnrecognizedSchema,
			Detail: fmt.Sprintf("header %q", strings.Join(header, ",")),
		}
	}

	row, err := nextRow(r)
	if err != nil {
		return &ValidationError{Reason: ReasonUnrecognizedSchema, Detail: err.Error()}
	}
	if row == nil {
		return &ValidationError{Reason: ReasonHeaderOnly}
	}
	if _, ok := layoutFor(len(row)); !ok {
		return &ValidationError{
			Reason: ReasonUnrecognizedSchema,
			Detail: fmt.Sprintf("first row has %d fields", len(row)),
		}
	}
	return nil
}

// nextRow returns the next non-blank row, or nil at end of input.
func nextRow(r interface{ Read() ([]string, error) }) ([]string, error) {
	for {
		fields, err := r.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !blank(fields) {
			return fields, nil
		}
	}
}
