package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/garden/internal/adapters/config"
	"go.trai.ch/garden/internal/core/domain"
)

func newTestRegistry() *config.Registry {
	root := filepath.FromSlash("/work/shop")
	return config.NewRegistry(&domain.Project{
		Name: "shop",
		Root: root,
		Modules: []*domain.Module{
			{Name: "api", Path: filepath.Join(root, "api"), BuildDependencies: []string{"lib"}, ServiceDependencies: []string{"db"}},
			{Name: "api-docs", Path: filepath.Join(root, "api", "docs")},
			{Name: "db", Path: filepath.Join(root, "db")},
			{Name: "lib", Path: filepath.Join(root, "lib")},
			{Name: "web", Path: filepath.Join(root, "web"), ServiceDependencies: []string{"api", "db"}},
		},
	})
}

func TestRegistry_Lookups(t *testing.T) {
	r := newTestRegistry()

	api, err := r.Module("api")
	require.NoError(t, err)

	builds, err := r.BuildDependencies(api)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "lib", builds[0].Name)

	services, err := r.ServiceDependencies(api)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "db", services[0].Name)

	db, err := r.Module("db")
	require.NoError(t, err)
	var dependants []string
	for _, m := range r.ServiceDependants(db) {
		dependants = append(dependants, m.Name)
	}
	assert.Equal(t, []string{"api", "web"}, dependants)

	_, err = r.Module("ghost")
	require.ErrorIs(t, err, domain.ErrModuleNotFound)
}

func TestRegistry_MissingDependency(t *testing.T) {
	r := config.NewRegistry(&domain.Project{
		Modules: []*domain.Module{{Name: "a", BuildDependencies: []string{"ghost"}}},
	})
	a, err := r.Module("a")
	require.NoError(t, err)

	_, err = r.BuildDependencies(a)
	require.ErrorIs(t, err, domain.ErrMissingDependency)
}

func TestRegistry_Select(t *testing.T) {
	r := newTestRegistry()

	all, err := r.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	some, err := r.Select([]string{"web", "api", "web"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "web", some[0].Name)
	assert.Equal(t, "api", some[1].Name)

	_, err = r.Select([]string{"ghost"})
	require.ErrorIs(t, err, domain.ErrModuleNotFound)
}
