// Package services implements the upstream language model providers the backend streams answers from.
package services

import (
	"strings"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/models"
)

// LLMParameters holds the optional sampling parameters passed to providers that support them. Nil fields are
// left to the provider's defaults.
type LLMParameters struct {
	Temperature      *float32 `yaml:"temperature"`
	TopP             *float32 `yaml:"topP"`
	MaxTokens        *int     `yaml:"maxTokens"`
	Stop             []string `yaml:"stop"`
	PresencePenalty  *float32 `yaml:"presencePenalty"`
	FrequencyPenalty *float32 `yaml:"frequencyPenalty"`
	Seed             *int     `yaml:"seed"`
}

// accumulator turns the incremental deltas of an upstream stream into the cumulative chunks the chat
// endpoint emits.
type accumulator struct {
	content   strings.Builder
	reasoning strings.Builder
}

// add appends the deltas and reports whether anything changed.
func (a *accumulator) add(content, reasoning string) bool {
	a.content.WriteString(content)
	a.reasoning.WriteString(reasoning)
	return content != "" || reasoning != ""
}

func (a *accumulator) chunk(complete bool) models.Chunk {
	return models.Chunk{
		Content:          a.content.String(),
		ReasoningContent: a.reasoning.String(),
		IsComplete:       complete,
	}
}
