package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrUnauthorized = fmt.Errorf("unauthorized")
var ErrUnknownLevel = fmt.Errorf("unknown level")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func newError(target error, msg string) error {
	return &myError{
		msg:    msg,
		target: target,
	}
}

const problemTypeBase string = "https://diwise.io/levelstore/errors/"

// NewErrorFromProblemReport turns an RFC7807 problem report into an error matching one of the sentinels above
func NewErrorFromProblemReport(code int, contentType string, body []byte) error {
	report := &struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{}

	err := json.Unmarshal(body, report)
	if err != nil {
		return newError(ErrBadResponse, fmt.Sprintf("failed to process problem report (content-type: %s): %s", contentType, err.Error()))
	}

	switch strings.TrimPrefix(report.Type, problemTypeBase) {
	case "NonexistentLevel":
		return newError(ErrUnknownLevel, report.Detail)
	case "ResourceNotFound":
		return newError(ErrNotFound, report.Detail)
	case "BadRequestData", "InvalidRequest":
		return newError(ErrBadRequest, report.Detail)
	case "AlreadyExists":
		return newError(ErrAlreadyExists, report.Detail)
	case "UnauthorizedRequest":
		return newError(ErrUnauthorized, report.Detail)
	}

	if code == http.StatusNotFound {
		return newError(ErrNotFound, report.Detail)
	}

	return newError(ErrInternal,
		fmt.Sprintf("[code: %d] unknown problem report of type \"%s\" with detail \"%s\" received",
			code, report.Type, report.Detail,
		),
	)
}
