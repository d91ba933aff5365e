package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func newTestRouter() chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// The request-shape tests below never reach the application service.
	h := NewCampaignHandler(nil, logger, validator.New())
	r := chi.NewRouter()
	r.Route("/api/campaigns", func(api chi.Router) {
		h.RegisterRoutes(api)
	})
	r.Get("/unsubscribe", h.Unsubscribe)
	return r
}

func TestCreateCampaign_InvalidBody(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCampaign_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"tenant_id":"t1","segment_id":"s1","channels":["email"],"email_subject":"x"}`},
		{name: "missing channels", body: `{"name":"n","tenant_id":"t1","segment_id":"s1"}`},
		{name: "unknown channel", body: `{"name":"n","tenant_id":"t1","segment_id":"s1","channels":["fax"]}`},
		{name: "email without subject", body: `{"name":"n","tenant_id":"t1","segment_id":"s1","channels":["email"]}`},
		{name: "whatsapp without template", body: `{"name":"n","tenant_id":"t1","segment_id":"s1","channels":["whatsapp"]}`},
		{name: "bad image url", body: `{"name":"n","tenant_id":"t1","segment_id":"s1","channels":["email"],"email_subject":"x","email_image_url":"notaurl"}`},
		{name: "contacts file not xlsx", body: `{"name":"n","tenant_id":"t1","segment_id":"s1","channels":["email"],"email_subject":"x","contacts_file":"contactos.csv"}`},
	}

	r := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/campaigns", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSendCampaign_InvalidID(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/not-a-uuid/send", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCampaign_InvalidID(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnsubscribe_MissingToken(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/unsubscribe", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(req))

	req.Header.Set("Authorization", "Basic abc123")
	assert.Empty(t, bearerToken(req))
}
