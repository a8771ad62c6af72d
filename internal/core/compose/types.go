// Package compose contains the project model for multi-service deploys
// and the loader that derives it from Docker Compose specifications.
package compose

import (
	"fmt"
	"sort"
)

// =============================================================================
// Project
// =============================================================================

// Project is the result of loading a deploy target: the ordered service
// descriptors plus the composition they were derived from.
type Project struct {
	Name        string
	Dir         string
	Descriptors []ServiceDescriptor
	Composition Composition
}

// Validate checks that every descriptor appears exactly once in the
// composition and vice versa.
func (p *Project) Validate() error {
	if len(p.Descriptors) == 0 {
		return ErrNoServices
	}
	seen := make(map[string]bool, len(p.Descriptors))
	for _, d := range p.Descriptors {
		if seen[d.ServiceName] {
			return NewParseError("services."+d.ServiceName, "service declared more than once", ErrDuplicateService)
		}
		seen[d.ServiceName] = true
		if _, ok := p.Composition.Services[d.ServiceName]; !ok {
			return NewParseError("services."+d.ServiceName, "descriptor has no composition entry", ErrDescriptorMismatch)
		}
	}
	for name := range p.Composition.Services {
		if !seen[name] {
			return NewParseError("services."+name, "composition entry has no descriptor", ErrDescriptorMismatch)
		}
	}
	return nil
}

// =============================================================================
// Service Descriptors
// =============================================================================

// ServiceDescriptor is one declared service. Immutable once loaded.
type ServiceDescriptor struct {
	ServiceName string
	Image       ImageSpec
}

// ImageSpec is the two-variant image field of a service: either a plain
// image reference or a build specification carrying the tag the built
// image will receive. Resolution to a reference string goes through
// Reference(); callers never type-probe beyond the two variants.
type ImageSpec interface {
	// Reference resolves the spec to the image reference used for
	// local probing and for the release request.
	Reference() string

	isImageSpec()
}

// PlainImage is an image reference taken verbatim from the composition.
type PlainImage struct {
	Ref string
}

// Reference returns the raw image reference.
func (p PlainImage) Reference() string { return p.Ref }

func (PlainImage) isImageSpec() {}

// BuildImage is a build specification. The service's image is produced
// locally and addressed by Tag afterwards.
type BuildImage struct {
	Context    string
	Dockerfile string
	Args       map[string]string
	Tag        string
}

// Reference returns the tag the built image is addressed by.
func (b BuildImage) Reference() string { return b.Tag }

func (BuildImage) isImageSpec() {}

// =============================================================================
// Composition
// =============================================================================

// ServiceConfig is one entry of a composition: the image spec plus the
// runtime settings forwarded to the release request.
type ServiceConfig struct {
	Name        string
	Image       ImageSpec
	Environment map[string]string
	Labels      map[string]string
}

// Composition maps service name to its configuration. Pruned views are
// value copies; a Composition is never mutated after construction.
type Composition struct {
	Services map[string]ServiceConfig
}

// NewComposition creates a composition over the given service configs.
func NewComposition(services ...ServiceConfig) Composition {
	m := make(map[string]ServiceConfig, len(services))
	for _, s := range services {
		m[s.Name] = s
	}
	return Composition{Services: m}
}

// Without returns a copy of the composition with the named services
// removed. Unknown names are ignored.
func (c Composition) Without(names []string) Composition {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := Composition{Services: make(map[string]ServiceConfig, len(c.Services))}
	for name, svc := range c.Services {
		if !drop[name] {
			out.Services[name] = svc
		}
	}
	return out
}

// ServiceNames returns the service names in sorted order.
func (c Composition) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of services in the composition.
func (c Composition) Len() int { return len(c.Services) }

// IsEmpty reports whether the composition has no services left.
func (c Composition) IsEmpty() bool { return len(c.Services) == 0 }

// DefaultBuildTag returns the tag a built service image receives when
// the compose file does not name one: <project>_<service>:latest.
func DefaultBuildTag(projectName, serviceName string) string {
	return fmt.Sprintf("%s_%s:latest", projectName, serviceName)
}
