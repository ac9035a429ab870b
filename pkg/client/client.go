package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/diwise/levelstore/pkg/graph"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type LevelStoreClient interface {
	Levels(ctx context.Context) ([]Level, error)
	ListObjects(ctx context.Context, level, objectType string) ([]ObjectSummary, error)
	RetrieveObject(ctx context.Context, level, objectID string) ([]byte, error)
	UpdateObject(ctx context.Context, level, objectID string, fragment []byte) (*graph.ApplyResult, error)
	DeleteObject(ctx context.Context, level, objectID string) error
	Import(ctx context.Context, level string, bundle io.Reader) (*ImportResult, error)
	Save(ctx context.Context, level string) error
}

type Level struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Objects          int       `json:"objects"`
	CompanionObjects int       `json:"companionObjects"`
	Spatial          int       `json:"spatial"`
	LoadedAt         time.Time `json:"loadedAt"`
}

type ObjectSummary struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Store string `json:"store"`
}

type ImportResult struct {
	Added        []string          `json:"added"`
	Deduplicated map[string]string `json:"deduplicated"`
	Renamed      map[string]string `json:"renamed"`
}

func Debug(enabled string) func(*lsClient) {
	return func(c *lsClient) {
		c.debug = (enabled == "true")
	}
}

// Token sets the bearer token sent with every request
func Token(token string) func(*lsClient) {
	return func(c *lsClient) {
		c.token = token
	}
}

func NewLevelStoreClient(baseURL string, options ...func(*lsClient)) LevelStoreClient {
	c := &lsClient{
		baseURL: baseURL,
		debug:   false,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeLevel    string = "level"
	TraceAttributeObjectID string = "object-id"
)

var tracer = otel.Tracer("levelstore-client")

type lsClient struct {
	baseURL    string
	token      string
	debug      bool
	httpClient http.Client
}

func (c *lsClient) levelURL(level string, parts ...string) string {
	u := c.baseURL + "/api/v1/levels/" + url.PathEscape(level)
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (c *lsClient) Levels(ctx context.Context) ([]Level, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-levels")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	levels := []Level{}
	err = c.callJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/levels", nil, &levels)

	return levels, err
}

func (c *lsClient) ListObjects(ctx context.Context, level, objectType string) ([]ObjectSummary, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-objects",
		trace.WithAttributes(attribute.String(TraceAttributeLevel, level)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	endpoint := c.levelURL(level, "objects")
	if objectType != "" {
		endpoint += "?type=" + url.QueryEscape(objectType)
	}

	objects := []ObjectSummary{}
	err = c.callJSON(ctx, http.MethodGet, endpoint, nil, &objects)

	return objects, err
}

// RetrieveObject returns the serialized XML element of an object
func (c *lsClient) RetrieveObject(ctx context.Context, level, objectID string) ([]byte, error) {
	var err error

	ctx, span := tracer.Start(ctx, "retrieve-object",
		trace.WithAttributes(attribute.String(TraceAttributeLevel, level)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, objectID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callLevelStore(
		ctx, http.MethodGet, c.levelURL(level, "objects", objectID), nil,
		map[string][]string{"Accept": {"application/xml"}},
	)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		err = responseError(response, responseBody)
		return nil, err
	}

	return responseBody, nil
}

// UpdateObject replaces the attributes of an object with those in an XML fragment. Edits
// that the store rejects are listed in the result.
func (c *lsClient) UpdateObject(ctx context.Context, level, objectID string, fragment []byte) (*graph.ApplyResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "update-object",
		trace.WithAttributes(attribute.String(TraceAttributeLevel, level)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, objectID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callLevelStore(
		ctx, http.MethodPatch, c.levelURL(level, "objects", objectID), bytes.NewReader(fragment),
		map[string][]string{"Content-Type": {"application/xml"}},
	)
	if err != nil {
		return nil, err
	}

	switch response.StatusCode {
	case http.StatusNoContent:
		return &graph.ApplyResult{Updated: []string{objectID}}, nil
	case http.StatusMultiStatus:
		result := &graph.ApplyResult{}
		err = json.Unmarshal(responseBody, result)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	err = responseError(response, responseBody)
	return nil, err
}

func (c *lsClient) DeleteObject(ctx context.Context, level, objectID string) error {
	var err error

	ctx, span := tracer.Start(ctx, "delete-object",
		trace.WithAttributes(attribute.String(TraceAttributeLevel, level)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, objectID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callLevelStore(ctx, http.MethodDelete, c.levelURL(level, "objects", objectID), nil, nil)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusNoContent {
		err = responseError(response, responseBody)
	}

	return err
}

func (c *lsClient) Import(ctx context.Context, level string, bundle io.Reader) (*ImportResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "import-bundle",
		trace.WithAttributes(attribute.String(TraceAttributeLevel, level)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result := &ImportResult{}
	err = c.callJSON(ctx, http.MethodPost, c.levelURL(level, "import"), bundle, result,
		map[string][]string{"Content-Type": {"application/xml"}},
	)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *lsClient) Save(ctx context.Context, level string) error {
	var err error

	ctx, span := tracer.Start(ctx, "save-level",
		trace.WithAttributes(attribute.String(TraceAttributeLevel, level)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callLevelStore(ctx, http.MethodPost, c.levelURL(level, "save"), nil, nil)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusNoContent {
		err = responseError(response, responseBody)
	}

	return err
}

func responseError(response *http.Response, body []byte) error {
	contentType := response.Header.Get("Content-Type")

	if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
		return NewErrorFromProblemReport(response.StatusCode, contentType, body)
	}

	return fmt.Errorf("level store returned status code %d (content-type: %s, body: %s)", response.StatusCode, contentType, string(body))
}

// callJSON expects a 200 response and decodes its body into result
func (c *lsClient) callJSON(ctx context.Context, method, endpoint string, body io.Reader, result any, headers ...map[string][]string) error {
	h := map[string][]string{"Accept": {"application/json"}}
	for _, more := range headers {
		for k, v := range more {
			h[k] = v
		}
	}

	response, responseBody, err := c.callLevelStore(ctx, method, endpoint, body, h)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusOK {
		return responseError(response, responseBody)
	}

	err = json.Unmarshal(responseBody, result)
	if err != nil {
		return newError(ErrBadResponse, fmt.Sprintf("failed to decode response: %s", err.Error()))
	}

	return nil
}

func (c *lsClient) callLevelStore(ctx context.Context, method, endpoint string, body io.Reader, headers map[string][]string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		err = fmt.Errorf("failed to create request: %s (%w)", err.Error(), ErrInternal)
		return nil, nil, err
	}

	for header, headerValue := range headers {
		for _, val := range headerValue {
			req.Header.Add(header, val)
		}
	}

	if c.token != "" {
		req.Header.Add("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to send request: %s (%w)", err.Error(), ErrRequest)
		return nil, nil, err
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %s (%w)", err.Error(), ErrBadResponse)
		return nil, nil, err
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		logging.GetFromContext(ctx).Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	return resp, respBody, nil
}
