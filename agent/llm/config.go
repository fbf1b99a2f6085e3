package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	openrouterx "github.com/finsight-labs/finsight/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// The advisory narrative model may differ from the reasoning model.
	NarrativeModel       string  `envconfig:"NARRATIVE_MODEL" split_words:"true"`
	NarrativeTemperature float32 `envconfig:"NARRATIVE_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterReasoning() openrouterx.Config {
	return c.openRouter(strings.TrimSpace(c.Model), c.Temperature)
}

func (c Config) OpenRouterNarrative() openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(c.NarrativeModel); v != "" {
		modelName = v
	}
	temp := c.Temperature
	if c.NarrativeTemperature >= 0 {
		temp = c.NarrativeTemperature
	}
	return c.openRouter(modelName, temp)
}

func (c Config) openRouter(modelName string, temp float32) openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
