package levels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/levelstore/internal/pkg/application/editor"
	"github.com/diwise/levelstore/internal/pkg/presentation/api/levels/auth"
	apierrors "github.com/diwise/levelstore/internal/pkg/presentation/api/levels/errors"
	graphErrors "github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, app editor.LevelEditor) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	xmlOnly := RequiredContentTypes([]string{"application/xml", "text/xml"})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Logger(logging.GetFromContext(ctx)))

		r.Get("/types", NewRetrieveTypesHandler(app))

		r.Route("/levels", func(r chi.Router) {
			r.Get("/", NewListLevelsHandler(app))

			r.Route("/{level}", func(r chi.Router) {
				r.Use(LevelMiddleware())

				r.Get("/objects", NewListObjectsHandler(app))
				r.Get("/objects/{id}", NewRetrieveObjectHandler(app))
				r.Get("/objects/{id}/hash", NewObjectHashHandler(app))
				r.Get("/diff", NewDiffObjectsHandler(app))

				r.With(xmlOnly).Patch("/objects/{id}", NewUpdateObjectHandler(app, authenticator))
				r.Delete("/objects/{id}", NewDeleteObjectHandler(app, authenticator))

				r.With(xmlOnly).Post("/import", NewImportBundleHandler(app, authenticator))
				r.Post("/save", NewSaveLevelHandler(app, authenticator))
			})
		})
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LevelMiddleware adds the requested level to the context logger
func LevelMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.NewContextWithLogger(
				r.Context(),
				logging.GetFromContext(r.Context()),
				"level",
				chi.URLParam(r, "level"),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}

// reportError maps errors from the editor and the object graph onto problem reports
func reportError(w http.ResponseWriter, err error) {
	switch {
	case errors.As(err, &editor.UnknownLevelError{}):
		apierrors.ReportUnknownLevelError(w, err.Error())
	case errors.As(err, &editor.NotFoundError{}),
		errors.Is(err, graphErrors.ErrNotFound):
		apierrors.ReportNotFoundError(w, err.Error())
	case errors.Is(err, graphErrors.ErrDuplicateID):
		apierrors.ReportNewAlreadyExistsError(w, err.Error())
	case errors.As(err, &editor.BadRequestDataError{}),
		errors.Is(err, graphErrors.ErrMalformedDocument),
		errors.Is(err, graphErrors.ErrDecode),
		errors.Is(err, graphErrors.ErrDanglingReference),
		errors.Is(err, graphErrors.ErrReferenceNotRegistered),
		errors.Is(err, graphErrors.ErrUnknownAttribute),
		errors.Is(err, graphErrors.ErrTypeMismatch):
		apierrors.ReportNewBadRequestData(w, err.Error())
	default:
		apierrors.ReportNewInternalError(w, err.Error())
	}
}

func checkAccess(ctx context.Context, w http.ResponseWriter, r *http.Request, authenticator auth.Enticator, level string) error {
	err := authenticator.CheckAccess(ctx, r, level)
	if err != nil {
		apierrors.ReportUnauthorizedRequest(w, err.Error())
	}
	return err
}
