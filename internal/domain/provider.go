package domain

import "errors"

// ComponentType selects which calendar component a provider syncs
type ComponentType string

const (
	ComponentTodo  ComponentType = "TODO"
	ComponentEvent ComponentType = "EVENT"
)

// AuthType selects the credential set sent to the server
type AuthType string

const (
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
)

var ErrNotConfigured = errors.New("provider not configured")

// ProviderConfig describes one CalDAV issue provider. It is treated as
// immutable for the duration of a sync call.
type ProviderConfig struct {
	ID             string        `yaml:"id"`
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ResourceName   string        `yaml:"resource"`
	ComponentType  ComponentType `yaml:"component"`
	AuthType       AuthType      `yaml:"auth"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	BearerToken    string        `yaml:"bearer_token"`
	CategoryFilter string        `yaml:"category_filter"`
	WriteBack      bool          `yaml:"write_back"`

	// TransitionEnabled pushes local done/undone back to VTODOs.
	TransitionEnabled bool `yaml:"transition"`
}

// Validate checks that URL, resource and the credential set for the
// chosen auth mode are populated. Anything other than bearer is basic.
func (c *ProviderConfig) Validate() error {
	if c == nil || c.URL == "" || c.ResourceName == "" {
		return ErrNotConfigured
	}
	if c.AuthType == AuthBearer {
		if c.BearerToken == "" {
			return ErrNotConfigured
		}
		return nil
	}
	if c.Username == "" || c.Password == "" {
		return ErrNotConfigured
	}
	return nil
}

// IsEvent reports whether the provider syncs VEVENTs
func (c *ProviderConfig) IsEvent() bool {
	return c.ComponentType == ComponentEvent
}

// ConnectionKey identifies the server session for this config. The
// credential is encoded with its auth mode so configs that differ only in
// credentials never share a session.
func (c *ProviderConfig) ConnectionKey() string {
	if c.AuthType == AuthBearer {
		return c.URL + "|bearer|" + c.BearerToken
	}
	return c.URL + "|basic|" + c.Username + "|" + c.Password
}
