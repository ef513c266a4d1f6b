package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type echo struct {
	Method string `json:"method"`
	Name   string `json:"name"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			var in echo
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&in)
			}
			_ = json.NewEncoder(w).Encode(echo{Method: r.Method, Name: in.Name})
		case "/missing":
			http.Error(w, "product not found", http.StatusNotFound)
		case "/broken":
			http.Error(w, "boom", http.StatusBadGateway)
		case "/garbage":
			_, _ = w.Write([]byte("<html>"))
		}
	}))
}

func TestDoJSON(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(noop.NewTracerProvider().Tracer("test"))

	var out echo
	require.NoError(t, c.PatchJSON(context.Background(), srv.URL+"/ok", echo{Name: "book"}, &out))
	assert.Equal(t, echo{Method: http.MethodPatch, Name: "book"}, out)

	require.NoError(t, c.GetJSON(context.Background(), srv.URL+"/ok", nil))
}

func TestDoJSON_StatusErrors(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(noop.NewTracerProvider().Tracer("test"))

	err := c.GetJSON(context.Background(), srv.URL+"/missing", nil)
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "product not found", se.Body)
	assert.True(t, se.IsClientError())

	err = c.PostJSON(context.Background(), srv.URL+"/broken", echo{}, nil)
	se, ok = AsStatusError(err)
	require.True(t, ok)
	assert.False(t, se.IsClientError())
}

func TestDoJSON_TransportErrors(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(noop.NewTracerProvider().Tracer("test"))

	var out echo
	err := c.GetJSON(context.Background(), srv.URL+"/garbage", &out)
	require.Error(t, err)
	_, ok := AsStatusError(err)
	assert.False(t, ok)

	srv.Close()
	err = c.GetJSON(context.Background(), srv.URL+"/ok", &out)
	require.Error(t, err)
	_, ok = AsStatusError(errors.Cause(err))
	assert.False(t, ok)

	assert.Error(t, c.GetJSON(context.Background(), "://bad-url", nil))
}
