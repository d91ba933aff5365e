package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MockEmailTransport is a test and local-dev implementation of EmailTransport.
type MockEmailTransport struct {
	logger *slog.Logger
	// FailWith, when non-nil, is returned by every Send.
	FailWith error
	// SimulatedDelay models provider latency.
	SimulatedDelay time.Duration
}

func NewMockEmailTransport(logger *slog.Logger) *MockEmailTransport {
	return &MockEmailTransport{logger: logger.With("transport", "mock_email")}
}

func (t *MockEmailTransport) Send(ctx context.Context, msg EmailMessage) (*EmailReceipt, error) {
	if t.SimulatedDelay > 0 {
		time.Sleep(t.SimulatedDelay)
	}
	if msg.To == "" {
		return nil, fmt.Errorf("%w: empty recipient", ErrValidation)
	}
	if t.FailWith != nil {
		t.logger.WarnContext(ctx, "Mock email transport simulated failure", "recipient", msg.To, "error", t.FailWith)
		return nil, t.FailWith
	}

	receipt := &EmailReceipt{
		MessageID: "mock-email-" + uuid.NewString(),
		ThreadID:  "mock-thread-" + uuid.NewString(),
	}
	t.logger.InfoContext(ctx, "Mock email sent", "recipient", msg.To, "subject", msg.Subject, "message_id", receipt.MessageID)
	return receipt, nil
}

func (t *MockEmailTransport) GetName() string { return "mock_email" }

// MockWhatsAppTransport is a test and local-dev implementation of
// WhatsAppTransport. ExpectedParamCount models the template's declared
// schema; a mismatching request is a validation error before any send.
type MockWhatsAppTransport struct {
	logger             *slog.Logger
	ExpectedParamCount int
	FailWith           error
	SimulatedDelay     time.Duration
}

func NewMockWhatsAppTransport(logger *slog.Logger, expectedParamCount int) *MockWhatsAppTransport {
	return &MockWhatsAppTransport{
		logger:             logger.With("transport", "mock_whatsapp"),
		ExpectedParamCount: expectedParamCount,
	}
}

func (t *MockWhatsAppTransport) SendTemplate(ctx context.Context, msg TemplateMessage) (*TemplateReceipt, error) {
	if t.SimulatedDelay > 0 {
		time.Sleep(t.SimulatedDelay)
	}
	if msg.To == "" || msg.TemplateName == "" {
		return nil, fmt.Errorf("%w: recipient and template name are required", ErrValidation)
	}
	if t.ExpectedParamCount > 0 && len(msg.BodyParams) != t.ExpectedParamCount {
		return nil, fmt.Errorf("%w: template %q expects %d body params, got %d",
			ErrValidation, msg.TemplateName, t.ExpectedParamCount, len(msg.BodyParams))
	}
	if t.FailWith != nil {
		t.logger.WarnContext(ctx, "Mock WhatsApp transport simulated failure", "recipient", msg.To, "error", t.FailWith)
		return nil, t.FailWith
	}

	receipt := &TemplateReceipt{MessageID: "mock-wa-" + uuid.NewString()}
	t.logger.InfoContext(ctx, "Mock WhatsApp template sent",
		"recipient", msg.To, "template", msg.TemplateName, "message_id", receipt.MessageID)
	return receipt, nil
}

func (t *MockWhatsAppTransport) GetName() string { return "mock_whatsapp" }

// TransientFailure builds a provider error the retry layer classifies as
// retryable; handy for drills and tests.
func TransientFailure() error {
	return &StatusError{StatusCode: 503, Message: "simulated provider outage"}
}

// ErrSimulatedTimeout mimics a network timeout surfaced as a plain error.
var ErrSimulatedTimeout = errors.New("simulated request timeout")
