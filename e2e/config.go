package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// GATEWAY_ADDR is the host:port of a running gateway; suites skip when empty
	GatewayAddr string `envconfig:"GATEWAY_ADDR"`
	AdminAddr   string `envconfig:"ADMIN_ADDR"`
	// ADMIN_TOKEN_SECRET must match the gateway's secret to mint admin tokens
	AdminTokenSecret string `envconfig:"ADMIN_TOKEN_SECRET" default:"e2e-secret"`
	// E2E_DEBUG_JSON allows dumping full frame bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// Tokens the external authority resolves to the test identities
	BuyerToken  string `envconfig:"E2E_BUYER_TOKEN" default:"buyer-token"`
	SellerToken string `envconfig:"E2E_SELLER_TOKEN" default:"seller-token"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
