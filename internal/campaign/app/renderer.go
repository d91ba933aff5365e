package app

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// RenderContext carries everything a template needs for one recipient.
type RenderContext struct {
	RecipientName  string
	BrandName      string
	Subject        string
	PromoImages    []string
	Vehicle        string
	UnsubscribeURL string
	ContactURL     string
}

// Renderer turns a per-recipient context into email bodies. Implementations
// must be pure: no I/O, same input same output.
type Renderer interface {
	Render(rc RenderContext) (html string, text string, err error)
}

const defaultHTMLTemplate = `<!DOCTYPE html>
<html>
<body>
<p>Hola {{.RecipientName}},</p>
<p>{{.BrandName}} tiene promociones para ti.</p>
{{range .PromoImages}}<img src="{{.}}" alt="promo" width="600"/>
{{end}}{{if .ContactURL}}<p><a href="{{.ContactURL}}">Contáctanos</a></p>
{{end}}<p><a href="{{.UnsubscribeURL}}">Cancelar suscripción</a></p>
</body>
</html>
`

const defaultTextTemplate = `Hola {{.RecipientName}},

{{.BrandName}} tiene promociones para ti.
{{if .ContactURL}}
Contáctanos: {{.ContactURL}}
{{end}}
Cancelar suscripción: {{.UnsubscribeURL}}
`

// TemplateRenderer is the default Renderer, backed by html/template with a
// plain-text alternative part.
type TemplateRenderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	h, err := htmltemplate.New("email_html").Parse(defaultHTMLTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html template: %w", err)
	}
	t, err := texttemplate.New("email_text").Parse(defaultTextTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	return &TemplateRenderer{html: h, text: t}, nil
}

func (r *TemplateRenderer) Render(rc RenderContext) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, rc); err != nil {
		return "", "", fmt.Errorf("failed to render html body: %w", err)
	}
	if err := r.text.Execute(&textBuf, rc); err != nil {
		return "", "", fmt.Errorf("failed to render text body: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
