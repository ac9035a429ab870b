package errors

import (
	"fmt"
)

var ErrDuplicateID = fmt.Errorf("duplicate id")
var ErrDanglingReference = fmt.Errorf("dangling reference")
var ErrReferenceNotRegistered = fmt.Errorf("reference not registered")
var ErrUnsupportedOperation = fmt.Errorf("unsupported operation")
var ErrTypeMismatch = fmt.Errorf("type mismatch")
var ErrDecode = fmt.Errorf("decode error")
var ErrMalformedDocument = fmt.Errorf("malformed document")
var ErrUnknownAttribute = fmt.Errorf("unknown attribute")
var ErrNotLinked = fmt.Errorf("not linked")
var ErrDeleted = fmt.Errorf("object deleted")
var ErrNotFound = fmt.Errorf("not found")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func newError(target error, format string, args ...any) error {
	return &myError{
		msg:    fmt.Sprintf(format, args...),
		target: target,
	}
}

func NewDuplicateIDError(id string) error {
	return newError(ErrDuplicateID, "an object with id %s is already registered", id)
}

// NewDanglingReferenceError reports a pointer whose identifier could not be found in
// either of the stores it was resolved against.
func NewDanglingReferenceError(objectID, attribute string, index int, target string) error {
	return newError(ErrDanglingReference,
		"object %s: %s[%d] references unknown object %s", objectID, attribute, index, target)
}

func NewReferenceNotRegisteredError(objectID string) error {
	return newError(ErrReferenceNotRegistered, "object %s is not registered in a reachable store", objectID)
}

func NewUnsupportedOperationError(msg string) error {
	return newError(ErrUnsupportedOperation, "%s", msg)
}

func NewTypeMismatchError(a, b string) error {
	return newError(ErrTypeMismatch, "cannot compare objects of type %s and %s", a, b)
}

func NewDecodeError(typeTag, text string, cause error) error {
	if cause != nil {
		return newError(ErrDecode, "unable to decode %q as %s: %s", text, typeTag, cause.Error())
	}
	return newError(ErrDecode, "unable to decode %q as %s", text, typeTag)
}

func NewEncodeError(typeTag string, value any) error {
	return newError(ErrDecode, "value %v (%T) cannot be encoded as %s", value, value, typeTag)
}

func NewMalformedDocumentError(format string, args ...any) error {
	return newError(ErrMalformedDocument, format, args...)
}

// NewUnknownAttributeError reports a lookup of an attribute name that the object does not
// declare. A non-empty suggestion is appended as a hint.
func NewUnknownAttributeError(objectID, name, suggestion string) error {
	if suggestion != "" {
		return newError(ErrUnknownAttribute, "object %s has no attribute %q (did you mean %q?)", objectID, name, suggestion)
	}
	return newError(ErrUnknownAttribute, "object %s has no attribute %q", objectID, name)
}

func NewNotLinkedError(objectID string) error {
	return newError(ErrNotLinked, "pointers of object %s have not been resolved", objectID)
}

func NewDeletedError(objectID string) error {
	return newError(ErrDeleted, "object %s has already been deleted", objectID)
}

func NewNotFoundError(msg string) error {
	return newError(ErrNotFound, "%s", msg)
}
