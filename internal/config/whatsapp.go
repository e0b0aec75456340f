package config

import "time"

// WhatsAppConfig configures the connection to the WhatsApp bridge process,
// which owns the WhatsApp Web session and speaks JSON over a websocket.
type WhatsAppConfig struct {
	Enabled     bool   `env:"WHATSAPP_ENABLED" yaml:"enabled" default:"true"`
	BridgeURL   string `env:"WHATSAPP_BRIDGE_URL" yaml:"bridge_url" default:"ws://127.0.0.1:3001/ws"`
	BridgeToken string `env:"WHATSAPP_BRIDGE_TOKEN" yaml:"bridge_token"`

	// HealthURL is an optional HTTP endpoint of the bridge added to readiness
	HealthURL string `env:"WHATSAPP_BRIDGE_HEALTH_URL" yaml:"health_url"`

	HandshakeTimeout time.Duration `env:"WHATSAPP_HANDSHAKE_TIMEOUT" yaml:"handshake_timeout" default:"10s"`
	WriteTimeout     time.Duration `env:"WHATSAPP_WRITE_TIMEOUT" yaml:"write_timeout" default:"10s"`
	ReconnectMin     time.Duration `env:"WHATSAPP_RECONNECT_MIN" yaml:"reconnect_min" default:"1s"`
	ReconnectMax     time.Duration `env:"WHATSAPP_RECONNECT_MAX" yaml:"reconnect_max" default:"30s"`

	// ShowQR renders pairing codes on the terminal
	ShowQR bool `env:"WHATSAPP_SHOW_QR" yaml:"show_qr" default:"true"`

	IgnoreGroups bool `env:"WHATSAPP_IGNORE_GROUPS" yaml:"ignore_groups" default:"false"`
}
