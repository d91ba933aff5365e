package tenants

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisplayName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tenants/tenant-1", r.URL.Path)
		w.Write([]byte(`{"data":{"tenant":{"displayName":"Autos del Valle"}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "Motorlink", testLogger(), server.Client())
	assert.Equal(t, "Autos del Valle", c.DisplayName(context.Background(), "tenant-1"))
}

func TestDisplayName_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{name: "not found", handler: func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}},
		{name: "malformed body", handler: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}},
		{name: "empty display name", handler: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"tenant":{"displayName":""}}}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClient(server.URL, "Motorlink", testLogger(), server.Client())
			assert.Equal(t, "Motorlink", c.DisplayName(context.Background(), "tenant-1"))
		})
	}
}

func TestDisplayName_EmptyTenantIDSkipsLookup(t *testing.T) {
	c := NewClient("http://unreachable.invalid", "Motorlink", testLogger(), nil)
	assert.Equal(t, "Motorlink", c.DisplayName(context.Background(), ""))
}
