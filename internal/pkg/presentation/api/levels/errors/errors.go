package errors

import (
	"encoding/json"
	"net/http"
)

// ProblemDetails stores details about a certain problem according to RFC7807
// See https://tools.ietf.org/html/rfc7807
type ProblemDetails interface {
	ContentType() string
	Type() string
	Title() string
	Detail() string
	MarshalJSON() ([]byte, error)
	WriteResponse(w http.ResponseWriter)
}

type ProblemDetailsImpl struct {
	typ    string
	title  string
	detail string
	code   int
}

const (
	// ProblemReportContentType as required by https://tools.ietf.org/html/rfc7807
	ProblemReportContentType string = "application/problem+json"

	problemTypeBase string = "https://diwise.io/levelstore/errors/"
)

func newProblem(name, title, detail string, code int) ProblemDetailsImpl {
	return ProblemDetailsImpl{
		typ:    problemTypeBase + name,
		title:  title,
		detail: detail,
		code:   code,
	}
}

// AlreadyExists reports that the request tries to register an id that is already taken
type AlreadyExists struct {
	ProblemDetailsImpl
}

func NewAlreadyExists(detail string) *AlreadyExists {
	return &AlreadyExists{newProblem("AlreadyExists", "Already Exists", detail, http.StatusConflict)}
}

func ReportNewAlreadyExistsError(w http.ResponseWriter, detail string) {
	NewAlreadyExists(detail).WriteResponse(w)
}

// BadRequestData reports that the request includes input data which does not meet the requirements of the operation
type BadRequestData struct {
	ProblemDetailsImpl
}

func NewBadRequestData(detail string) *BadRequestData {
	return &BadRequestData{newProblem("BadRequestData", "Bad Request Data", detail, http.StatusBadRequest)}
}

func ReportNewBadRequestData(w http.ResponseWriter, detail string) {
	NewBadRequestData(detail).WriteResponse(w)
}

// InvalidRequest reports that the request is syntactically invalid
type InvalidRequest struct {
	ProblemDetailsImpl
}

func NewInvalidRequest(detail string) *InvalidRequest {
	return &InvalidRequest{newProblem("InvalidRequest", "Invalid Request", detail, http.StatusBadRequest)}
}

func ReportNewInvalidRequest(w http.ResponseWriter, detail string) {
	NewInvalidRequest(detail).WriteResponse(w)
}

type InternalError struct {
	ProblemDetailsImpl
}

func NewInternalError(detail string) *InternalError {
	return &InternalError{newProblem("InternalError", "Internal Error", detail, http.StatusInternalServerError)}
}

func ReportNewInternalError(w http.ResponseWriter, detail string) {
	NewInternalError(detail).WriteResponse(w)
}

type NotFound struct {
	ProblemDetailsImpl
}

func NewNotFound(detail string) *NotFound {
	return &NotFound{newProblem("ResourceNotFound", "Not Found", detail, http.StatusNotFound)}
}

func ReportNotFoundError(w http.ResponseWriter, detail string) {
	NewNotFound(detail).WriteResponse(w)
}

type UnauthorizedRequest struct {
	ProblemDetailsImpl
}

func NewUnauthorizedRequest(detail string) *UnauthorizedRequest {
	return &UnauthorizedRequest{newProblem("UnauthorizedRequest", "Unauthorized Request", detail, http.StatusUnauthorized)}
}

func ReportUnauthorizedRequest(w http.ResponseWriter, detail string) {
	NewUnauthorizedRequest(detail).WriteResponse(w)
}

// UnknownLevel reports that the request tries to interact with a level that is not configured
type UnknownLevel struct {
	ProblemDetailsImpl
}

func NewUnknownLevel(detail string) *UnknownLevel {
	return &UnknownLevel{newProblem("NonexistentLevel", "Non Existent Level", detail, http.StatusNotFound)}
}

func ReportUnknownLevelError(w http.ResponseWriter, detail string) {
	NewUnknownLevel(detail).WriteResponse(w)
}

func (p *ProblemDetailsImpl) ContentType() string {
	return ProblemReportContentType
}

func (p *ProblemDetailsImpl) Type() string {
	return p.typ
}

func (p *ProblemDetailsImpl) Title() string {
	return p.title
}

func (p *ProblemDetailsImpl) Detail() string {
	return p.detail
}

func (p *ProblemDetailsImpl) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{
		Type:   p.typ,
		Title:  p.title,
		Detail: p.detail,
	})
}

// ResponseCode returns the HTTP response code to be used when returning a specific problem
func (p *ProblemDetailsImpl) ResponseCode() int {
	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

func (p *ProblemDetailsImpl) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", p.ContentType())
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
