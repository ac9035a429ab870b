package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
)

func TestRouterServesRegisteredRoutes(t *testing.T) {
	is := is.New(t)

	r := New("levelstore-test")
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	is.Equal(w.Code, http.StatusOK)
}

func TestRouterAnswersPreflightRequests(t *testing.T) {
	is := is.New(t)

	r := New("levelstore-test")
	r.Delete("/thing", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodOptions, "/thing", nil)
	req.Header.Set("Origin", "http://editor.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	is.True(w.Header().Get("Access-Control-Allow-Origin") != "")
}

func TestRouterRecoversFromPanics(t *testing.T) {
	is := is.New(t)

	r := New("levelstore-test")
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	is.Equal(w.Code, http.StatusInternalServerError)
}
