package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tazhate/tasksync/internal/domain"
)

// ProvidersFile is the YAML layout accepted by LoadProviders:
//
//	providers:
//	  - id: work
//	    url: https://cal.example.com/dav/
//	    resource: tasks
//	    component: TODO
//	    username: alice
//	    password: ${CALDAV_PASSWORD}
type ProvidersFile struct {
	Providers []providerEntry `yaml:"providers"`
}

type providerEntry domain.ProviderConfig

// UnmarshalYAML defaults enabled to true when the key is missing
func (p *providerEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain domain.ProviderConfig
	cfg := plain{Enabled: true}
	if err := value.Decode(&cfg); err != nil {
		return err
	}
	*p = providerEntry(cfg)
	return nil
}

// LoadProviders reads provider definitions from a YAML file. Credentials
// may reference environment variables as $VAR or ${VAR}.
func LoadProviders(path string) ([]*domain.ProviderConfig, error) {
	if path == "" {
		return nil, errors.New("providers path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers: %w", err)
	}

	var file ProvidersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers: %w", err)
	}

	seen := make(map[string]bool, len(file.Providers))
	providers := make([]*domain.ProviderConfig, 0, len(file.Providers))
	for i, entry := range file.Providers {
		p := domain.ProviderConfig(entry)
		if p.ID == "" {
			return nil, fmt.Errorf("provider #%d: id is required", i+1)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("provider %s: duplicate id", p.ID)
		}
		seen[p.ID] = true

		if err := Normalize(&p); err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.ID, err)
		}
		providers = append(providers, &p)
	}
	return providers, nil
}

// Normalize canonicalizes component and auth names and expands credential
// references. Missing credentials are left for ProviderConfig.Validate.
func Normalize(p *domain.ProviderConfig) error {
	switch strings.ToUpper(strings.TrimSpace(string(p.ComponentType))) {
	case "", "TODO", "VTODO":
		p.ComponentType = domain.ComponentTodo
	case "EVENT", "VEVENT":
		p.ComponentType = domain.ComponentEvent
	default:
		return fmt.Errorf("unknown component %q", p.ComponentType)
	}

	switch strings.ToLower(strings.TrimSpace(string(p.AuthType))) {
	case "", "basic":
		p.AuthType = domain.AuthBasic
	case "bearer":
		p.AuthType = domain.AuthBearer
	default:
		return fmt.Errorf("unknown auth %q", p.AuthType)
	}

	p.Username = os.ExpandEnv(p.Username)
	p.Password = os.ExpandEnv(p.Password)
	p.BearerToken = os.ExpandEnv(p.BearerToken)
	return nil
}
