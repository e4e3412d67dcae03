package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/devdash/internal/domain"
)

// servicesFile is the yaml layout of DEVDASH_SERVICES_FILE:
//
//	services:
//	  api:
//	    port: 3001
//	    health_path: /healthz
//	  schema-studio:
//	    controllable: true
//	    compose_service: studio
type servicesFile struct {
	Services map[string]domain.Override `yaml:"services"`
}

// LoadServices returns the default descriptors with the overrides of path
// applied. An empty path returns the defaults. Names outside the known set
// are an error, so the file cannot add services.
func LoadServices(path string) ([]domain.ServiceDescriptor, error) {
	defaults := domain.DefaultDescriptors()
	if path == "" {
		return defaults, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file: %w", err)
	}
	return parseServices(raw, defaults)
}

func parseServices(raw []byte, defaults []domain.ServiceDescriptor) ([]domain.ServiceDescriptor, error) {
	var f servicesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse services file: %w", err)
	}

	descs, err := domain.ApplyOverrides(defaults, f.Services)
	if err != nil {
		return nil, fmt.Errorf("services file: %w", err)
	}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("services file: %w", err)
		}
	}
	return descs, nil
}
