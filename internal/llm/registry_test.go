package llm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiiskristo/howdoyoufindme/internal/config"
	"github.com/kiiskristo/howdoyoufindme/internal/llm"
	"github.com/kiiskristo/howdoyoufindme/internal/llm/configbuilder"
	llmmock "github.com/kiiskristo/howdoyoufindme/internal/llm/mock"
)

func TestRegistryResolve(t *testing.T) {
	reg := llm.NewRegistry()
	mockProvider := &llmmock.Provider{NameValue: "mock"}
	reg.RegisterProvider("mock", mockProvider)
	reg.RegisterModel("fast", llm.ModelRoute{Provider: "mock", Model: "small"}, false)
	reg.RegisterModel("default", llm.ModelRoute{
		Provider:    "mock",
		Model:       "dummy",
		Temperature: 0.2,
	}, true)

	p, route, err := reg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, mockProvider, p)
	require.Equal(t, "dummy", route.Model)
	require.Equal(t, "default", route.Name)

	_, route, err = reg.Resolve("fast")
	require.NoError(t, err)
	require.Equal(t, "small", route.Model)

	_, _, err = reg.Resolve("missing")
	require.ErrorContains(t, err, `model "missing" not registered`)
}

func TestRegistryRoleBinding(t *testing.T) {
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", &llmmock.Provider{})
	reg.RegisterModel("main", llm.ModelRoute{Provider: "mock", Model: "large"}, true)
	reg.RegisterModel("cheap", llm.ModelRoute{Provider: "mock", Model: "small"}, false)

	_, route, err := reg.ForRole(llm.RoleRanking)
	require.NoError(t, err)
	require.Equal(t, "main", route.Name, "unbound role uses the default model")

	reg.BindRole(llm.RoleRanking, "cheap")
	_, route, err = reg.ForRole(llm.RoleRanking)
	require.NoError(t, err)
	require.Equal(t, "small", route.Model)

	reg.BindRole(llm.RoleRanking, "")
	_, route, err = reg.ForRole(llm.RoleRanking)
	require.NoError(t, err)
	require.Equal(t, "main", route.Name)
}

func TestRegistryResolveUnknownProvider(t *testing.T) {
	reg := llm.NewRegistry()
	reg.RegisterModel("main", llm.ModelRoute{Provider: "ghost", Model: "x"}, true)

	_, _, err := reg.Resolve("main")
	require.ErrorContains(t, err, `provider "ghost" not registered`)
}

func TestBuildRegistryFromConfig(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {Type: "openai", BaseURL: "http://example.com"},
			"local":  {Type: "ollama"},
		},
		Models: map[string]config.ModelConfig{
			"main":  {Provider: "openai", Model: "gpt-4o", Default: true},
			"llama": {Provider: "local", Model: "llama3.1"},
		},
		Analysis: config.AnalysisConfig{RankingModel: "llama"},
	}

	reg, err := configbuilder.BuildRegistryFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, "main", reg.DefaultModel())

	p, _, err := reg.Resolve("main")
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())

	p, route, err := reg.ForRole(llm.RoleRanking)
	require.NoError(t, err)
	require.Equal(t, "local", p.Name())
	require.Equal(t, "llama3.1", route.Model)

	_, route, err = reg.ForRole(llm.RoleKeywords)
	require.NoError(t, err)
	require.Equal(t, "main", route.Name)
}

func TestBuildRegistryFromConfigRejectsBadInput(t *testing.T) {
	_, err := configbuilder.BuildRegistryFromConfig(&config.Config{
		Providers: map[string]config.ProviderConfig{"x": {Type: "bogus"}},
	})
	require.ErrorContains(t, err, "unknown provider type")

	_, err = configbuilder.BuildRegistryFromConfig(&config.Config{
		Providers: map[string]config.ProviderConfig{"openai": {Type: "openai"}},
		Models:    map[string]config.ModelConfig{"main": {Provider: "openai", Model: "m", Default: true}},
		Analysis:  config.AnalysisConfig{KeywordsModel: "nope"},
	})
	require.ErrorContains(t, err, `keywords role: model "nope" not registered`)
}
