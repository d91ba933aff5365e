package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		ok       bool
	}{
		{name: "plain", raw: "cliente@example.com", expected: "cliente@example.com", ok: true},
		{name: "uppercase and padding", raw: "  Cliente@Example.COM  ", expected: "cliente@example.com", ok: true},
		{name: "plus tag", raw: "cliente+promo@example.com", expected: "cliente+promo@example.com", ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "whitespace only", raw: "   ", ok: false},
		{name: "missing domain", raw: "cliente@", ok: false},
		{name: "missing at sign", raw: "cliente.example.com", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeEmail(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestContactChannelAddresses(t *testing.T) {
	c := Contact{
		Email:       "  CLIENTE@example.com ",
		Telefono:    "garbage",
		TelefonoRaw: "5512345678",
		Nombre:      "  ",
	}

	email, ok := c.EmailAddress()
	assert.True(t, ok)
	assert.Equal(t, "cliente@example.com", email)

	// Primary phone is unusable; the raw fallback provides the number.
	phone, ok := c.WhatsAppNumber("MX")
	assert.True(t, ok)
	assert.Equal(t, "525512345678", phone)

	assert.Equal(t, "cliente", c.DisplayName("cliente"))
}
