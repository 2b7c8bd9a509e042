package prompts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

type PromptDefinition struct {
	Content string
	Version float32
}

type SYS_PROMPT struct {
	Intent         string
	CurrentVersion float32
	Items          map[float32]PromptDefinition // version-content
}

func (sp *SYS_PROMPT) GetVersion(version float32) (PromptDefinition, bool) {
	i, ok := sp.Items[version]
	return i, ok
}

func (sp *SYS_PROMPT) GetCurrentPrompt() PromptDefinition {
	return sp.Items[sp.CurrentVersion]
}

// Versions lists the known versions, oldest first.
func (sp *SYS_PROMPT) Versions() []float32 {
	out := make([]float32, 0, len(sp.Items))
	for v := range sp.Items {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Select resolves a configured version string. Empty means current.
func (sp *SYS_PROMPT) Select(version string) (PromptDefinition, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return sp.GetCurrentPrompt(), nil
	}
	v, err := strconv.ParseFloat(version, 32)
	if err != nil {
		return PromptDefinition{}, fmt.Errorf("invalid prompt version %q: %w", version, err)
	}
	pd, ok := sp.GetVersion(float32(v))
	if !ok {
		return PromptDefinition{}, fmt.Errorf("%s prompt has no version %q (known: %v)", sp.Intent, version, sp.Versions())
	}
	return pd, nil
}

func (pd PromptDefinition) ToMessage() pipeline.Message {
	return pipeline.Message{
		Role:    pipeline.RoleSystem,
		Content: strings.TrimSpace(pd.Content),
	}
}
