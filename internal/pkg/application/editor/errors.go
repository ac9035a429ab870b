package editor

import (
	"fmt"
)

type UnknownLevelError struct {
	level string
}

func NewUnknownLevelError(level string) UnknownLevelError {
	return UnknownLevelError{level: level}
}

func (ule UnknownLevelError) Error() string {
	return fmt.Sprintf("unknown level \"%s\"", ule.level)
}

type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) NotFoundError {
	return NotFoundError{msg: msg}
}

func (nfe NotFoundError) Error() string {
	return nfe.msg
}

type BadRequestDataError struct {
	msg string
}

func NewBadRequestDataError(msg string) BadRequestDataError {
	return BadRequestDataError{msg: msg}
}

func (brd BadRequestDataError) Error() string {
	return brd.msg
}
