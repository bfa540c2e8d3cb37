package configbuilder

import (
	"fmt"

	"github.com/kiiskristo/howdoyoufindme/internal/config"
	"github.com/kiiskristo/howdoyoufindme/internal/llm"
	llmollama "github.com/kiiskristo/howdoyoufindme/internal/llm/providers/ollama"
	llmopenai "github.com/kiiskristo/howdoyoufindme/internal/llm/providers/openai"
)

// BuildRegistryFromConfig constructs providers and model routes from config,
// binds the analysis roles, and checks that both roles resolve.
func BuildRegistryFromConfig(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	for name, pCfg := range cfg.Providers {
		p, err := buildProvider(name, pCfg)
		if err != nil {
			return nil, err
		}
		reg.RegisterProvider(name, p)
	}

	for name, mCfg := range cfg.Models {
		reg.RegisterModel(name, llm.ModelRoute{
			Provider:    mCfg.Provider,
			Model:       mCfg.Model,
			Temperature: mCfg.Temperature,
			MaxTokens:   mCfg.MaxTokens,
		}, mCfg.Default)
	}

	reg.BindRole(llm.RoleKeywords, cfg.Analysis.KeywordsModel)
	reg.BindRole(llm.RoleRanking, cfg.Analysis.RankingModel)

	for _, role := range []string{llm.RoleKeywords, llm.RoleRanking} {
		if _, _, err := reg.ForRole(role); err != nil {
			return nil, fmt.Errorf("%s role: %w", role, err)
		}
	}

	return reg, nil
}

func buildProvider(name string, cfg config.ProviderConfig) (llm.Provider, error) {
	switch cfg.Type {
	case "openai", "openrouter", "vllm", "lmstudio", "custom":
		return llmopenai.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "ollama":
		return llmollama.NewProvider(name, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, name)
	}
}
