package compose

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// composeFileNames are probed in order when loading a source directory.
var composeFileNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// =============================================================================
// Project Loading
// =============================================================================

// LoadProject loads a multi-service project from a source directory.
// The first compose file found in the directory is used.
func LoadProject(dir, projectName string) (*Project, error) {
	var content []byte
	var found bool
	for _, name := range composeFileNames {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			content = b
			found = true
			break
		}
	}
	if !found {
		return nil, NewParseError(dir, "no compose file found", ErrComposeMissing)
	}
	return ParseProject(string(content), projectName, dir)
}

// ParseProject parses Docker Compose YAML into a Project.
// This is a pure function - no I/O, no side effects.
func ParseProject(yamlContent, projectName, dir string) (*Project, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	cp, err := loadComposeSpec(yamlContent, projectName)
	if err != nil {
		return nil, err
	}

	if len(cp.Services) == 0 {
		return nil, ErrNoServices
	}

	project := &Project{
		Name:        projectName,
		Dir:         dir,
		Descriptors: make([]ServiceDescriptor, 0, len(cp.Services)),
		Composition: Composition{Services: make(map[string]ServiceConfig, len(cp.Services))},
	}

	// Descriptor order is fixed at load time: services sorted by name.
	services := make([]types.ServiceConfig, 0, len(cp.Services))
	for _, svc := range cp.Services {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	for _, svc := range services {
		cfg, err := convertService(projectName, dir, svc)
		if err != nil {
			return nil, err
		}
		project.Descriptors = append(project.Descriptors, ServiceDescriptor{
			ServiceName: cfg.Name,
			Image:       cfg.Image,
		})
		project.Composition.Services[cfg.Name] = cfg
	}

	if err := project.Validate(); err != nil {
		return nil, err
	}
	return project, nil
}

// SingleImageProject builds a one-service project around an explicit
// image reference, for deploys that ship a prebuilt image.
func SingleImageProject(projectName, dir, imageRef string) *Project {
	cfg := ServiceConfig{
		Name:  "main",
		Image: PlainImage{Ref: imageRef},
	}
	return &Project{
		Name:        projectName,
		Dir:         dir,
		Descriptors: []ServiceDescriptor{{ServiceName: cfg.Name, Image: cfg.Image}},
		Composition: NewComposition(cfg),
	}
}

// loadComposeSpec loads a compose spec using compose-go.
func loadComposeSpec(yamlContent, projectName string) (*types.Project, error) {
	// Parse YAML into a map first so syntax errors surface cleanly.
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, true)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// Paths stay relative; the builder resolves them against the
		// project directory.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have image or build", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// convertService converts a compose-go service to a ServiceConfig,
// deciding the image variant for the deploy engine.
func convertService(projectName, dir string, svc types.ServiceConfig) (ServiceConfig, error) {
	cfg := ServiceConfig{
		Name:        svc.Name,
		Environment: make(map[string]string),
		Labels:      make(map[string]string),
	}

	switch {
	case svc.Build != nil:
		tag := svc.Image
		if tag == "" {
			tag = DefaultBuildTag(projectName, svc.Name)
		}
		buildCtx := svc.Build.Context
		if buildCtx == "" {
			buildCtx = "."
		}
		if !filepath.IsAbs(buildCtx) {
			buildCtx = filepath.Join(dir, buildCtx)
		}
		dockerfile := svc.Build.Dockerfile
		if dockerfile == "" {
			dockerfile = "Dockerfile"
		}
		args := make(map[string]string)
		for k, v := range svc.Build.Args {
			if v != nil {
				args[k] = *v
			}
		}
		cfg.Image = BuildImage{
			Context:    buildCtx,
			Dockerfile: dockerfile,
			Args:       args,
			Tag:        tag,
		}
	case svc.Image != "":
		cfg.Image = PlainImage{Ref: svc.Image}
	default:
		return ServiceConfig{}, NewParseError("services."+svc.Name, "service must have image or build", ErrServiceNoImage)
	}

	for k, v := range svc.Environment {
		if v != nil {
			cfg.Environment[k] = *v
		}
	}
	for k, v := range svc.Labels {
		cfg.Labels[k] = v
	}

	return cfg, nil
}
