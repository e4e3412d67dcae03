package domain

import (
	"fmt"
	"regexp"
)

// composeNamePattern follows the compose naming rules. It is checked again
// here so that a bad yaml override can never reach a command line.
var composeNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Registry is the read-only table of managed services.
type Registry struct {
	ordered []ServiceDescriptor
	byName  map[ServiceName]int
}

// NewRegistry validates descriptors and builds a registry.
// An empty registry is valid.
func NewRegistry(descs ...ServiceDescriptor) (*Registry, error) {
	r := &Registry{
		ordered: make([]ServiceDescriptor, 0, len(descs)),
		byName:  make(map[ServiceName]int, len(descs)),
	}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("service %s registered twice", d.Name)
		}
		r.byName[d.Name] = len(r.ordered)
		r.ordered = append(r.ordered, d)
	}
	return r, nil
}

// DefaultRegistry returns the registry built from DefaultDescriptors.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDescriptors()...)
	if err != nil {
		panic(fmt.Sprintf("default registry is invalid: %v", err))
	}
	return r
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.ordered) }

// All returns a copy of every descriptor in registration order.
func (r *Registry) All() []ServiceDescriptor {
	out := make([]ServiceDescriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []ServiceName {
	out := make([]ServiceName, 0, len(r.ordered))
	for _, d := range r.ordered {
		out = append(out, d.Name)
	}
	return out
}

// Get returns the descriptor for a known name.
func (r *Registry) Get(name ServiceName) (ServiceDescriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return ServiceDescriptor{}, false
	}
	return r.ordered[i], true
}

// Lookup resolves raw caller input to a registered descriptor.
func (r *Registry) Lookup(raw string) (ServiceDescriptor, error) {
	name, err := ParseServiceName(raw)
	if err != nil {
		return ServiceDescriptor{}, err
	}
	d, ok := r.Get(name)
	if !ok {
		return ServiceDescriptor{}, &ValidationError{Name: raw, Reason: "service not registered"}
	}
	return d, nil
}

// Controllable resolves raw caller input to a descriptor that may be
// started or stopped individually.
func (r *Registry) Controllable(raw string) (ServiceDescriptor, error) {
	d, err := r.Lookup(raw)
	if err != nil {
		return ServiceDescriptor{}, err
	}
	if !d.Controllable {
		return ServiceDescriptor{}, &ValidationError{Name: raw, Reason: "service is not controllable"}
	}
	return d, nil
}

// ControllableServices returns the controllable subset in registration order.
func (r *Registry) ControllableServices() []ServiceDescriptor {
	out := make([]ServiceDescriptor, 0, len(r.ordered))
	for _, d := range r.ordered {
		if d.Controllable {
			out = append(out, d)
		}
	}
	return out
}

// Override changes the network or control settings of a known service.
// Nil fields keep the default.
type Override struct {
	Host         *string `yaml:"host"`
	Port         *int    `yaml:"port"`
	HealthPath   *string `yaml:"health_path"`
	Controllable *bool   `yaml:"controllable"`
	Compose      *string `yaml:"compose_service"`
}

// ApplyOverrides returns a copy of descs with overrides applied.
// Overrides for names outside the closed set are rejected.
func ApplyOverrides(descs []ServiceDescriptor, overrides map[string]Override) ([]ServiceDescriptor, error) {
	out := make([]ServiceDescriptor, len(descs))
	copy(out, descs)

	index := make(map[ServiceName]int, len(out))
	for i, d := range out {
		index[d.Name] = i
	}

	for raw, ov := range overrides {
		name, err := ParseServiceName(raw)
		if err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			return nil, &ValidationError{Name: raw, Reason: "service not registered"}
		}
		d := &out[i]
		if ov.Host != nil {
			d.Host = *ov.Host
		}
		if ov.Port != nil {
			d.Port = *ov.Port
		}
		if ov.HealthPath != nil {
			d.HealthPath = *ov.HealthPath
		}
		if ov.Controllable != nil {
			d.Controllable = *ov.Controllable
		}
		if ov.Compose != nil {
			d.ComposeService = *ov.Compose
		}
	}
	return out, nil
}

// ValidComposeName reports whether s is safe to pass to the compose tool.
func ValidComposeName(s string) bool {
	return composeNamePattern.MatchString(s)
}
