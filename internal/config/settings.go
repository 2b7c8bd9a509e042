package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	StaticDir        string        `mapstructure:"static_dir"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	// NegotiateTimeout bounds ICE gathering while answering an offer.
	NegotiateTimeout time.Duration `mapstructure:"negotiate_timeout"`
}

type SessionConfig struct {
	MaxConcurrent int64 `mapstructure:"max_concurrent"`
}

type STTConfig struct {
	Model        string        `mapstructure:"model"`
	LanguageCode string        `mapstructure:"language_code"`
	SampleRate   int           `mapstructure:"sample_rate"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type TTSConfig struct {
	Model        string        `mapstructure:"model"`
	Speaker      string        `mapstructure:"speaker"`
	LanguageCode string        `mapstructure:"language_code"`
	Pace         float64       `mapstructure:"pace"`
	SampleRate   int           `mapstructure:"sample_rate"`
	MaxChars     int           `mapstructure:"max_chars"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SarvamConfig struct {
	APIKey  string    `mapstructure:"api_key"`
	BaseURL string    `mapstructure:"base_url"`
	STT     STTConfig `mapstructure:"stt"`
	TTS     TTSConfig `mapstructure:"tts"`
}

type VADConfig struct {
	Threshold    float64       `mapstructure:"threshold"`
	StartSecs    time.Duration `mapstructure:"start_secs"`
	StopSecs     time.Duration `mapstructure:"stop_secs"`
	MaxUtterance time.Duration `mapstructure:"max_utterance"`
}

type OllamaConfig struct {
	URLs  []string `mapstructure:"urls"`
	Model string   `mapstructure:"model"`
}

type LLMConfig struct {
	Provider        string       `mapstructure:"provider"` // gemini, openai, anthropic or ollama
	Model           string       `mapstructure:"model"`
	GoogleAPIKey    string       `mapstructure:"google_api_key"`
	OpenAIAPIKey    string       `mapstructure:"openai_api_key"`
	AnthropicAPIKey string       `mapstructure:"anthropic_api_key"`
	MaxTokens       int          `mapstructure:"max_tokens"`
	Temperature     float64      `mapstructure:"temperature"`
	ThinkingBudget  int          `mapstructure:"thinking_budget"`
	Ollama          OllamaConfig `mapstructure:"ollama"`
}

type TutorConfig struct {
	PromptVersion string `mapstructure:"prompt_version"`
	Greeting      string `mapstructure:"greeting"`
}

type Settings struct {
	Server   ServerConfig  `mapstructure:"server"`
	Sessions SessionConfig `mapstructure:"sessions"`
	Sarvam   SarvamConfig  `mapstructure:"sarvam"`
	VAD      VADConfig     `mapstructure:"vad"`
	LLM      LLMConfig     `mapstructure:"llm"`
	Tutor    TutorConfig   `mapstructure:"tutor"`
	Env      string        `mapstructure:"env"`
	Debug    bool          `mapstructure:"debug"`
}

// Addr is the listen address for the http server.
func (s *Settings) Addr() string {
	return fmt.Sprintf(":%d", s.Server.Port)
}

// env vars the deployment already uses, bound onto nested keys
var envBindings = map[string]string{
	"server.port":             "PORT",
	"sarvam.api_key":          "SARVAM_API_KEY",
	"llm.google_api_key":      "GOOGLE_API_KEY",
	"llm.openai_api_key":      "OPENAI_API_KEY",
	"llm.anthropic_api_key":   "ANTHROPIC_API_KEY",
	"llm.ollama.urls":         "OLLAMA_URL",
	"llm.provider":            "LLM_PROVIDER",
	"sessions.max_concurrent": "MAX_SESSIONS",
	"tutor.prompt_version":    "PROMPT_VERSION",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("debug", false)

	v.SetDefault("server.port", 7860)
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.negotiate_timeout", 10*time.Second)

	v.SetDefault("sessions.max_concurrent", 16)

	v.SetDefault("sarvam.base_url", "https://api.sarvam.ai")
	v.SetDefault("sarvam.stt.model", "saaras:v2.5")
	v.SetDefault("sarvam.stt.language_code", "hi-IN")
	v.SetDefault("sarvam.stt.sample_rate", 16000)
	v.SetDefault("sarvam.stt.timeout", 30*time.Second)
	v.SetDefault("sarvam.tts.model", "bulbul:v3")
	v.SetDefault("sarvam.tts.speaker", "ishita")
	v.SetDefault("sarvam.tts.language_code", "hi-IN")
	v.SetDefault("sarvam.tts.pace", 0.9)
	v.SetDefault("sarvam.tts.sample_rate", 24000)
	v.SetDefault("sarvam.tts.max_chars", 240)
	v.SetDefault("sarvam.tts.timeout", 30*time.Second)

	v.SetDefault("vad.threshold", 0.02)
	v.SetDefault("vad.start_secs", 200*time.Millisecond)
	v.SetDefault("vad.stop_secs", 800*time.Millisecond)
	v.SetDefault("vad.max_utterance", 30*time.Second)

	v.SetDefault("llm.provider", "gemini")
	// llm.model is left empty so each provider falls back to its own model
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.thinking_budget", 4096)
	v.SetDefault("llm.ollama.model", "llama3.1")

	v.SetDefault("tutor.prompt_version", "")
	v.SetDefault("tutor.greeting", "Greet the student warmly and ask what subject or topic they'd like to learn today.")
}

// Load reads .env (overriding the process env, like the deployment scripts
// expect), then the optional config_<ENV>.yaml, then env vars.
func Load() (*Settings, error) {
	// a missing .env is fine, anything else is not
	if err := godotenv.Overload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return LoadFrom(viper.New(), ".")
}

// LoadFrom builds settings from the given viper instance, looking for the
// yaml config in the provided paths.
func LoadFrom(v *viper.Viper, paths ...string) (*Settings, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetConfigName("config_" + genEnv(v))
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// OLLAMA_URL may carry a comma separated list
	settings.LLM.Ollama.URLs = splitList(settings.LLM.Ollama.URLs)
	if settings.LLM.Model == "" {
		settings.LLM.Model = DefaultModel(settings.LLM.Provider, settings.LLM.Ollama.Model)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

var defaultModels = map[string]string{
	"gemini":    "gemini-2.5-pro",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-7-sonnet-latest",
}

// DefaultModel is the model used when llm.model is not set. Ollama serves
// whatever llm.ollama.model names.
func DefaultModel(provider, ollamaModel string) string {
	if provider == "ollama" {
		return ollamaModel
	}
	return defaultModels[provider]
}

func (s *Settings) Validate() error {
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", s.Server.Port)
	}
	if s.Sessions.MaxConcurrent <= 0 {
		return fmt.Errorf("sessions.max_concurrent must be positive, got %d", s.Sessions.MaxConcurrent)
	}
	switch s.LLM.Provider {
	case "gemini", "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown llm.provider %q", s.LLM.Provider)
	}
	return nil
}

func genEnv(v *viper.Viper) string {
	env := v.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
