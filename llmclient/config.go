package llmclient

import (
	"fmt"
	"os"
	"strings"

	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/llmclient/claude"
	"github.com/nrcarlson/mcpcore/llmclient/gemini"
	"github.com/nrcarlson/mcpcore/llmclient/openai"
)

var log = logging.For("llmclient")

// Config holds the connection details NewClient needs to build a concrete
// provider adapter.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Streaming   bool
}

// Provider identifies which vendor a model name belongs to.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderOpenAI
	ProviderClaude
	ProviderGemini
)

// NewClient builds the concrete Client for cfg.Model's provider, auto-
// detected from the model name prefix.
func NewClient(cfg Config) (Client, error) {
	switch DetectProvider(cfg.Model) {
	case ProviderOpenAI:
		apiKey := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("llmclient: OPENAI_API_KEY required for model %q", cfg.Model)
		}
		log.Info("using OpenAI client", "model", cfg.Model)
		return openai.New(openai.Config{
			Model: cfg.Model, APIKey: apiKey, BaseURL: cfg.BaseURL,
			Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens,
			UseResponsesAPI: isResponsesModel(cfg.Model),
		}), nil

	case ProviderClaude:
		apiKey := firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("llmclient: ANTHROPIC_API_KEY required for model %q", cfg.Model)
		}
		log.Info("using Claude client", "model", cfg.Model)
		return claude.New(claude.Config{
			Model: cfg.Model, APIKey: apiKey, BaseURL: cfg.BaseURL,
			Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens,
		}), nil

	case ProviderGemini:
		apiKey := firstNonEmpty(cfg.APIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("llmclient: GEMINI_API_KEY required for model %q", cfg.Model)
		}
		log.Info("using Gemini client", "model", cfg.Model)
		return gemini.New(gemini.Config{
			Model: cfg.Model, APIKey: apiKey, BaseURL: cfg.BaseURL,
			Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens,
		}), nil

	default:
		return nil, fmt.Errorf("llmclient: unknown provider for model %q", cfg.Model)
	}
}

// DetectProvider maps a model name to its provider by prefix, the same
// convention every major vendor's model naming follows.
func DetectProvider(model string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1-"), strings.HasPrefix(m, "o3"):
		return ProviderOpenAI
	case strings.HasPrefix(m, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(m, "gemini-"):
		return ProviderGemini
	default:
		return ProviderUnknown
	}
}

// isResponsesModel reports whether model should use OpenAI's Responses API
// instead of Chat Completions (gpt-5 and the o-series reasoning models).
func isResponsesModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gpt-5") || strings.HasPrefix(m, "o1-") || strings.HasPrefix(m, "o3")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
