package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

type Notifier interface {
	Start() error
	Stop() error

	ObjectsDeleted(ctx context.Context, level string, ids []string)
	BundleImported(ctx context.Context, level string, added []string, deduplicated int)
	LevelReloaded(ctx context.Context, level string)
	LevelSaved(ctx context.Context, level string)
}

var tracer = otel.Tracer("levelstore/notifier")

const (
	ObjectsDeletedEvent string = "ObjectsDeleted"
	BundleImportedEvent string = "BundleImported"
	LevelReloadedEvent  string = "LevelReloaded"
	LevelSavedEvent     string = "LevelSaved"
)

// Notification is the body posted to the notification endpoint
type Notification struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Level        string    `json:"level"`
	NotifiedAt   time.Time `json:"notifiedAt"`
	Objects      []string  `json:"objects,omitempty"`
	Deduplicated int       `json:"deduplicated,omitempty"`
}

func newNotification(eventType, level string) Notification {
	return Notification{
		ID:         "urn:levelstore:notification:" + uuid.NewString(),
		Type:       eventType,
		Level:      level,
		NotifiedAt: time.Now().UTC(),
	}
}

type action func()

type notifier struct {
	started  bool
	endpoint string

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("a notification endpoint is required")
	}

	u, err := url.ParseRequestURI(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("notification endpoint %q is not an absolute http url", endpoint)
	}

	return &notifier{
		endpoint: endpoint,
		queue:    make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	if n.started {
		resultChan := make(chan bool)

		n.queue <- func() {
			// close the queue to signal the consumer that we are going out of business
			close(n.queue)
			resultChan <- true
		}

		<-resultChan
		n.started = false
	}
	return nil
}

func (n *notifier) ObjectsDeleted(ctx context.Context, level string, ids []string) {
	notification := newNotification(ObjectsDeletedEvent, level)
	notification.Objects = ids
	n.enqueue(ctx, notification)
}

func (n *notifier) BundleImported(ctx context.Context, level string, added []string, deduplicated int) {
	notification := newNotification(BundleImportedEvent, level)
	notification.Objects = added
	notification.Deduplicated = deduplicated
	n.enqueue(ctx, notification)
}

func (n *notifier) LevelReloaded(ctx context.Context, level string) {
	n.enqueue(ctx, newNotification(LevelReloadedEvent, level))
}

func (n *notifier) LevelSaved(ctx context.Context, level string) {
	n.enqueue(ctx, newNotification(LevelSavedEvent, level))
}

func (n *notifier) enqueue(ctx context.Context, notification Notification) {
	if !n.started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"post",
	)

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = postNotification(ctx, notification, n.endpoint)
		if err != nil {
			logger.Error("failed to post notification", "type", notification.Type, "err", err.Error())
		}
	}
}

func postNotification(ctx context.Context, notification Notification, endpoint string) error {
	body, err := json.MarshalIndent(notification, "", " ")
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint responded with status %d", resp.StatusCode)
	}

	return nil
}

func (n *notifier) run() {
	// repeat until the queue is closed
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
