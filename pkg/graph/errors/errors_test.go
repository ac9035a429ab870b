package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"
)

func TestErrorsMatchTheirSentinel(t *testing.T) {
	is := is.New(t)

	is.True(errors.Is(NewDuplicateIDError("1"), ErrDuplicateID))
	is.True(errors.Is(NewDanglingReferenceError("2", "Target", 0, "17"), ErrDanglingReference))
	is.True(errors.Is(NewDecodeError("float", "abc", nil), ErrDecode))
	is.True(!errors.Is(NewDecodeError("float", "abc", nil), ErrMalformedDocument))
}

func TestThatWrappedErrorsStillMatch(t *testing.T) {
	is := is.New(t)

	err := fmt.Errorf("failed to load level: %w", NewMalformedDocumentError("entity %d has no id", 3))

	is.True(errors.Is(err, ErrMalformedDocument))
	is.Equal(err.Error(), "failed to load level: entity 3 has no id")
}

func TestUnknownAttributeMessageIncludesSuggestion(t *testing.T) {
	is := is.New(t)

	err := NewUnknownAttributeError("12", "Nmae", "Name")
	is.Equal(err.Error(), `object 12 has no attribute "Nmae" (did you mean "Name"?)`)

	err = NewUnknownAttributeError("12", "Colour", "")
	is.Equal(err.Error(), `object 12 has no attribute "Colour"`)
}
