// Package transport defines the contracts the delivery workers require from
// the channel providers. Concrete providers (email API, WhatsApp Business
// API) live behind these interfaces and are bound once at process startup by
// explicit configuration, never by runtime string dispatch.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// EmailMessage is one outbound email send request.
type EmailMessage struct {
	To      string
	From    string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
}

// EmailReceipt is the provider acknowledgement of an accepted email.
type EmailReceipt struct {
	MessageID string
	ThreadID  string
}

// EmailTransport submits a single email to the provider.
type EmailTransport interface {
	Send(ctx context.Context, msg EmailMessage) (*EmailReceipt, error)
	GetName() string
}

// TemplateMessage is one outbound WhatsApp template send request.
type TemplateMessage struct {
	To             string
	TemplateName   string
	LanguageCode   string
	BodyParams     []string
	HeaderImageURL string
}

// TemplateReceipt is the provider acknowledgement of an accepted template message.
type TemplateReceipt struct {
	MessageID string
}

// WhatsAppTransport submits a single template message to the provider.
type WhatsAppTransport interface {
	SendTemplate(ctx context.Context, msg TemplateMessage) (*TemplateReceipt, error)
	GetName() string
}

// ErrValidation marks precondition violations (e.g. a body-parameter count
// that does not match the template's declared schema). Validation failures
// are permanent: the retry layer must not retry them.
var ErrValidation = errors.New("transport validation error")

// StatusError is a transport failure carrying the provider's HTTP status,
// which the retry layer uses to classify the failure as transient or
// permanent.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport error: status %d: %s", e.StatusCode, e.Message)
}
