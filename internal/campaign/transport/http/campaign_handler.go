package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/motorlink/golang_services/internal/campaign/app"
	"github.com/motorlink/golang_services/internal/campaign/domain"
)

type CampaignHandler struct {
	service  *app.CampaignAppService
	logger   *slog.Logger
	validate *validator.Validate
}

func NewCampaignHandler(service *app.CampaignAppService, logger *slog.Logger, validate *validator.Validate) *CampaignHandler {
	return &CampaignHandler{
		service:  service,
		logger:   logger,
		validate: validate,
	}
}

// mapDomainErrorToHTTPStatus translates service errors into HTTP responses.
func mapDomainErrorToHTTPStatus(w http.ResponseWriter, logger *slog.Logger, err error, operation, resourceID string) {
	logEntry := logger.With("operation", operation, "resource_id", resourceID, "error", err)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logEntry.Warn("Resource not found")
		http.Error(w, "Campaign not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrDispatchInProgress):
		logEntry.Warn("Dispatch already in progress")
		http.Error(w, "A dispatch for this campaign is already running", http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidTransition):
		logEntry.Warn("Campaign not in a sendable state")
		http.Error(w, fmt.Sprintf("Campaign cannot be sent: %s", err.Error()), http.StatusConflict)
	default:
		logEntry.Error("Unhandled service error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO CreateCampaignRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode request body for CreateCampaign", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Validation failed for CreateCampaign", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	channels := domain.NormalizeChannels(reqDTO.Channels)
	for _, ch := range channels {
		if ch == domain.ChannelEmail && reqDTO.EmailSubject == "" {
			http.Error(w, "email_subject is required when channels include email", http.StatusBadRequest)
			return
		}
		if ch == domain.ChannelWhatsApp && reqDTO.WATemplateName == "" {
			http.Error(w, "wa_template_name is required when channels include whatsapp", http.StatusBadRequest)
			return
		}
	}

	c, err := h.service.CreateCampaign(ctx, app.CreateCampaignParams{
		Name:           reqDTO.Name,
		TenantID:       reqDTO.TenantID,
		SegmentID:      reqDTO.SegmentID,
		SegmentToken:   bearerToken(r),
		Channels:       channels,
		ContactsFile:   reqDTO.ContactsFile,
		EmailSubject:   reqDTO.EmailSubject,
		EmailImageURL:  reqDTO.EmailImageURL,
		WATemplateName: reqDTO.WATemplateName,
		WATemplateLang: reqDTO.WATemplateLang,
		WAParamCount:   reqDTO.WAParamCount,
	})
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "CreateCampaign", "")
		return
	}

	h.logger.InfoContext(ctx, "Campaign created via API", "campaign_id", c.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toCampaignDTO(c)); err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode response for CreateCampaign", "error", err)
	}
}

func (h *CampaignHandler) SendCampaign(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, "SendCampaign", h.service.TriggerSend)
}

// ResendCampaign re-runs dispatch. Already-queued WhatsApp recipients are
// deduplicated in the queue, new segment members are picked up, and a
// campaign stranded in sending by a crashed run is accepted.
func (h *CampaignHandler) ResendCampaign(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, "ResendCampaign", h.service.TriggerResend)
}

func (h *CampaignHandler) trigger(w http.ResponseWriter, r *http.Request, operation string, start func(context.Context, uuid.UUID) error) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.WarnContext(ctx, "Invalid campaign id", "operation", operation, "error", err)
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return
	}

	if err := start(ctx, id); err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, operation, id.String())
		return
	}

	h.logger.InfoContext(ctx, "Dispatch accepted", "operation", operation, "campaign_id", id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resDTO := SendAcceptedDTO{CampaignID: id.String(), Status: string(domain.StatusSending)}
	if err := json.NewEncoder(w).Encode(resDTO); err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode response", "operation", operation, "error", err)
	}
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.WarnContext(ctx, "Invalid campaign id for GetCampaign", "error", err)
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return
	}

	c, stats, err := h.service.DetailsWithStats(ctx, id)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "GetCampaign", id.String())
		return
	}

	resDTO := CampaignDetailsDTO{
		CampaignDTO: toCampaignDTO(c),
		Stats:       toStatsDTOs(stats),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resDTO); err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode response for GetCampaign", "error", err)
	}
}

// Unsubscribe serves the one-click unsubscribe link embedded in campaign
// emails. It renders a minimal human-readable page; RFC 8058 one-click POSTs
// hit the same handler.
func (h *CampaignHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	if err := h.service.Unsubscribe(ctx, token); err != nil {
		h.logger.WarnContext(ctx, "Unsubscribe rejected", "error", err)
		http.Error(w, "Invalid or expired unsubscribe link", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><p>Tu suscripción ha sido cancelada. No recibirás más correos de esta campaña.</p></body></html>")
}

// bearerToken extracts the Authorization bearer credential, if present.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// RegisterRoutes registers campaign routes on a Chi router.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.CreateCampaign)
	r.Get("/{id}", h.GetCampaign)
	r.Post("/{id}/send", h.SendCampaign)
	r.Post("/{id}/resend", h.ResendCampaign)
}
