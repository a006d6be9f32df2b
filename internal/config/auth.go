package config

import (
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
)

// AuthConfig holds the Casdoor application used to verify admin tokens.
type AuthConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

func (c *AuthConfig) Enabled() bool {
	return c.Endpoint != "" && c.Certificate != ""
}

// NewCasdoorClient returns nil when Casdoor is not configured.
func (c *AuthConfig) NewCasdoorClient() *casdoorsdk.Client {
	if !c.Enabled() {
		return nil
	}
	return casdoorsdk.NewClient(c.Endpoint, c.ClientID, c.ClientSecret, c.Certificate, c.Organization, c.Application)
}
