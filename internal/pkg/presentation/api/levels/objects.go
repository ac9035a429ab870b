package levels

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diwise/levelstore/internal/pkg/application/editor"
	"github.com/diwise/levelstore/internal/pkg/presentation/api/levels/auth"
	apierrors "github.com/diwise/levelstore/internal/pkg/presentation/api/levels/errors"
	"github.com/diwise/levelstore/pkg/graph"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("levelstore/api/levels")

const maxBodySize int64 = 64 << 20

func writeJSON(w http.ResponseWriter, code int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)

	return nil
}

func NewRetrieveTypesHandler(app editor.LevelEditor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-types")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = writeJSON(w, http.StatusOK, app.Types(ctx))
	})
}

func NewListLevelsHandler(app editor.LevelEditor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "list-levels")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = writeJSON(w, http.StatusOK, app.Levels(ctx))
	})
}

func NewListObjectsHandler(app editor.LevelEditor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "list-objects")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		level := chi.URLParam(r, "level")
		objectType := r.URL.Query().Get("type")

		var objects []editor.ObjectSummary
		objects, err = app.ListObjects(ctx, level, objectType)
		if err != nil {
			reportError(w, err)
			return
		}

		err = writeJSON(w, http.StatusOK, objects)
	})
}

// NewRetrieveObjectHandler responds with the JSON form of an object, or with its
// serialized XML element when the client accepts XML
func NewRetrieveObjectHandler(app editor.LevelEditor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		level := chi.URLParam(r, "level")
		objectID := chi.URLParam(r, "id")

		var snapshot *editor.ObjectSnapshot
		snapshot, err = app.RetrieveObject(ctx, level, objectID)
		if err != nil {
			reportError(w, err)
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "xml") {
			w.Header().Add("Content-Type", "application/xml")
			w.WriteHeader(http.StatusOK)
			w.Write(snapshot.XML)
			return
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(snapshot.JSON)
	})
}

func NewObjectHashHandler(app editor.LevelEditor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "object-hash")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		var hash *editor.HashResult
		hash, err = app.ObjectHash(ctx, chi.URLParam(r, "level"), chi.URLParam(r, "id"))
		if err != nil {
			reportError(w, err)
			return
		}

		err = writeJSON(w, http.StatusOK, hash)
	})
}

func NewDiffObjectsHandler(app editor.LevelEditor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "diff-objects")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		a := r.URL.Query().Get("a")
		b := r.URL.Query().Get("b")

		if a == "" || b == "" {
			err = errors.New("both a and b must be present in a request for a diff")
			apierrors.ReportNewBadRequestData(w, err.Error())
			return
		}

		var diffs []editor.DiffEntry
		diffs, err = app.DiffObjects(ctx, chi.URLParam(r, "level"), a, b)
		if err != nil {
			reportError(w, err)
			return
		}

		err = writeJSON(w, http.StatusOK, diffs)
	})
}

// NewUpdateObjectHandler replaces the attributes of an object with those of the
// XML fragment in the request body
func NewUpdateObjectHandler(app editor.LevelEditor, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "update-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		level := chi.URLParam(r, "level")
		objectID := chi.URLParam(r, "id")

		if err = checkAccess(ctx, w, r, authenticator, level); err != nil {
			return
		}

		var fragment []byte
		fragment, err = io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			apierrors.ReportNewInvalidRequest(w, fmt.Sprintf("unable to read request body: %s", err.Error()))
			return
		}

		var result *graph.ApplyResult
		result, err = app.ApplyText(ctx, level, []graph.TextEdit{{ObjectID: objectID, Fragment: fragment}})
		if err != nil {
			reportError(w, err)
			return
		}

		if result.IsMultiStatus() {
			err = writeJSON(w, http.StatusMultiStatus, result)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// NewDeleteObjectHandler deletes an object along with every pointer into it
func NewDeleteObjectHandler(app editor.LevelEditor, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "delete-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		level := chi.URLParam(r, "level")

		if err = checkAccess(ctx, w, r, authenticator, level); err != nil {
			return
		}

		_, err = app.DeleteObjects(ctx, level, chi.URLParam(r, "id"))
		if err != nil {
			reportError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func NewImportBundleHandler(app editor.LevelEditor, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "import-bundle")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		level := chi.URLParam(r, "level")

		if err = checkAccess(ctx, w, r, authenticator, level); err != nil {
			return
		}

		var result *editor.ImportResult
		result, err = app.Import(ctx, level, io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			reportError(w, err)
			return
		}

		err = writeJSON(w, http.StatusOK, result)
	})
}

func NewSaveLevelHandler(app editor.LevelEditor, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "save-level")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		level := chi.URLParam(r, "level")

		if err = checkAccess(ctx, w, r, authenticator, level); err != nil {
			return
		}

		if err = app.Save(ctx, level); err != nil {
			reportError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
