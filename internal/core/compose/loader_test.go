package compose

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const minimalValidSpec = `
services:
  app:
    image: nginx:latest
`

const multiServiceSpec = `
services:
  web:
    image: nginx:latest
    environment:
      API_HOST: api

  api:
    build:
      context: ./api
      dockerfile: Dockerfile.prod
      args:
        GO_VERSION: "1.24"

  db:
    image: postgres:15
`

const buildWithImageSpec = `
services:
  worker:
    image: registry.example.com/worker:2.1
    build:
      context: ./worker
`

const serviceWithoutImageSpec = `
services:
  app:
    command: ["sleep", "infinity"]
`

// =============================================================================
// ParseProject Tests
// =============================================================================

func TestParseProject_Minimal(t *testing.T) {
	project, err := ParseProject(minimalValidSpec, "myproj", "/src/myproj")
	require.NoError(t, err)

	require.Len(t, project.Descriptors, 1)
	assert.Equal(t, "app", project.Descriptors[0].ServiceName)
	assert.Equal(t, PlainImage{Ref: "nginx:latest"}, project.Descriptors[0].Image)
	assert.Equal(t, "nginx:latest", project.Descriptors[0].Image.Reference())
	assert.Equal(t, 1, project.Composition.Len())
}

func TestParseProject_MultiService(t *testing.T) {
	project, err := ParseProject(multiServiceSpec, "shop", "/src/shop")
	require.NoError(t, err)

	require.Len(t, project.Descriptors, 3)

	// Descriptor order is sorted by service name.
	names := make([]string, 0, 3)
	for _, d := range project.Descriptors {
		names = append(names, d.ServiceName)
	}
	assert.Equal(t, []string{"api", "db", "web"}, names)

	api, ok := project.Composition.Services["api"]
	require.True(t, ok)
	build, ok := api.Image.(BuildImage)
	require.True(t, ok, "api should be a build-spec service")
	assert.Equal(t, "/src/shop/api", build.Context)
	assert.Equal(t, "Dockerfile.prod", build.Dockerfile)
	assert.Equal(t, "1.24", build.Args["GO_VERSION"])
	assert.Equal(t, "shop_api:latest", build.Tag)
	assert.Equal(t, "shop_api:latest", build.Reference())

	web := project.Composition.Services["web"]
	assert.Equal(t, "api", web.Environment["API_HOST"])
}

func TestParseProject_BuildWithExplicitImage(t *testing.T) {
	project, err := ParseProject(buildWithImageSpec, "proj", "/src/proj")
	require.NoError(t, err)

	build, ok := project.Composition.Services["worker"].Image.(BuildImage)
	require.True(t, ok)
	// The declared image name wins over the generated tag.
	assert.Equal(t, "registry.example.com/worker:2.1", build.Tag)
}

func TestParseProject_EmptyInput(t *testing.T) {
	_, err := ParseProject("   \n", "proj", ".")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseProject_InvalidYAML(t *testing.T) {
	_, err := ParseProject("services: [unclosed", "proj", ".")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParseProject_ServiceWithoutImageOrBuild(t *testing.T) {
	_, err := ParseProject(serviceWithoutImageSpec, "proj", ".")
	require.Error(t, err)

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		assert.Contains(t, parseErr.Error(), "image or build")
	}
}

// =============================================================================
// LoadProject Tests
// =============================================================================

func TestLoadProject_FindsComposeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalValidSpec), 0o644))

	project, err := LoadProject(dir, "myproj")
	require.NoError(t, err)

	assert.Equal(t, dir, project.Dir)
	require.Len(t, project.Descriptors, 1)
	assert.Equal(t, "app", project.Descriptors[0].ServiceName)
}

func TestLoadProject_PrefersDockerComposeYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(minimalValidSpec), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yaml"), []byte(multiServiceSpec), 0o644))

	project, err := LoadProject(dir, "myproj")
	require.NoError(t, err)
	assert.Len(t, project.Descriptors, 1, "docker-compose.yml wins over compose.yaml")
}

func TestLoadProject_NoComposeFile(t *testing.T) {
	_, err := LoadProject(t.TempDir(), "myproj")
	assert.ErrorIs(t, err, ErrComposeMissing)
}

// =============================================================================
// Composition Tests
// =============================================================================

func TestComposition_Without(t *testing.T) {
	comp := NewComposition(
		ServiceConfig{Name: "web", Image: PlainImage{Ref: "nginx:latest"}},
		ServiceConfig{Name: "api", Image: PlainImage{Ref: "api:1.0"}},
		ServiceConfig{Name: "db", Image: PlainImage{Ref: "postgres:15"}},
	)

	pruned := comp.Without([]string{"api", "nonexistent"})

	assert.Equal(t, []string{"db", "web"}, pruned.ServiceNames())
	// Original composition untouched.
	assert.Equal(t, 3, comp.Len())
}

func TestComposition_WithoutAll(t *testing.T) {
	comp := NewComposition(
		ServiceConfig{Name: "web", Image: PlainImage{Ref: "nginx:latest"}},
	)

	pruned := comp.Without([]string{"web"})
	assert.True(t, pruned.IsEmpty())
	assert.False(t, comp.IsEmpty())
}

func TestSingleImageProject(t *testing.T) {
	project := SingleImageProject("myfleet", ".", "myorg/app:1.2.3")

	require.NoError(t, project.Validate())
	require.Len(t, project.Descriptors, 1)
	assert.Equal(t, "main", project.Descriptors[0].ServiceName)
	assert.Equal(t, "myorg/app:1.2.3", project.Descriptors[0].Image.Reference())
}

func TestProjectValidate_DescriptorMismatch(t *testing.T) {
	project := &Project{
		Name: "broken",
		Descriptors: []ServiceDescriptor{
			{ServiceName: "web", Image: PlainImage{Ref: "nginx:latest"}},
		},
		Composition: NewComposition(
			ServiceConfig{Name: "api", Image: PlainImage{Ref: "api:1.0"}},
		),
	}

	err := project.Validate()
	assert.ErrorIs(t, err, ErrDescriptorMismatch)
}

func TestDefaultBuildTag(t *testing.T) {
	assert.Equal(t, "shop_api:latest", DefaultBuildTag("shop", "api"))
}
