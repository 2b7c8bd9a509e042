package prompts

import (
	"strings"
	"testing"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

func TestSelectDefaultsToCurrent(t *testing.T) {
	pd, err := TUTOR_PROMPT.Select("")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if pd.Version != TUTOR_PROMPT.CurrentVersion {
		t.Errorf("Expected current version %v, got %v", TUTOR_PROMPT.CurrentVersion, pd.Version)
	}
	if !strings.Contains(pd.Content, "Mauryan") {
		t.Error("Expected the history tutor prompt to be current")
	}
}

func TestSelectExplicitVersion(t *testing.T) {
	pd, err := TUTOR_PROMPT.Select("1.0")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if pd.Version != 1.0 {
		t.Errorf("Expected version 1.0, got %v", pd.Version)
	}
}

func TestSelectUnknownVersion(t *testing.T) {
	if _, err := TUTOR_PROMPT.Select("9.9"); err == nil {
		t.Error("Expected error for unknown version")
	}
	if _, err := TUTOR_PROMPT.Select("latest"); err == nil {
		t.Error("Expected error for unparsable version")
	}
}

func TestToMessage(t *testing.T) {
	msg := TUTOR_PROMPT.GetCurrentPrompt().ToMessage()
	if msg.Role != pipeline.RoleSystem {
		t.Errorf("Expected system role, got %s", msg.Role)
	}
	if strings.HasPrefix(msg.Content, "\n") {
		t.Error("Expected content to be trimmed")
	}
}

func TestPromptsAvoidMarkdown(t *testing.T) {
	for _, v := range TUTOR_PROMPT.Versions() {
		pd, _ := TUTOR_PROMPT.GetVersion(v)
		if strings.ContainsAny(pd.Content, "*#") {
			t.Errorf("Version %v contains markdown characters", v)
		}
	}
}
