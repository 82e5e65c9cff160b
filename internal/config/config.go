package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all environment-driven settings.
type Config struct {
	VAPIAPIKey    string
	AssistantID   string
	PhoneNumberID string
	VAPIBaseURL   string

	ClassifierBackend string
	ClassifierModel   string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	PromptPath        string

	DBPath          string
	HTTPPort        string
	HTTPTimeout     time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	PersistPending  bool

	GroupMeBotID string
	GroupMeURL   string

	Environment  string
	LogLevel     string
	StrictConfig bool
	ConfigPath   string
}

// Classifier backends.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

const (
	defaultPort            = ":8501"
	defaultDBFile          = "call_history.db"
	defaultVAPIBaseURL     = "https://api.vapi.ai"
	defaultOpenAIBaseURL   = "https://api.openai.com"
	defaultGeminiModel     = "gemini-pro"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultPollIntervalSec = 5
	defaultPollAttempts    = 30
	maxPollAttempts        = 720
	defaultHTTPTimeoutSec  = 30
	defaultGroupMeURL      = "https://api.groupme.com/v3/bots/post"
)

type fileConfig struct {
	VAPIBaseURL       string `json:"vapi_base_url" yaml:"vapi_base_url"`
	AssistantID       string `json:"assistant_id" yaml:"assistant_id"`
	PhoneNumberID     string `json:"phone_number_id" yaml:"phone_number_id"`
	ClassifierBackend string `json:"classifier_backend" yaml:"classifier_backend"`
	ClassifierModel   string `json:"classifier_model" yaml:"classifier_model"`
	PromptPath        string `json:"prompt_path" yaml:"prompt_path"`
	DBPath            string `json:"db_path" yaml:"db_path"`
	HTTPPort          string `json:"http_port" yaml:"http_port"`
	PollIntervalSec   *int   `json:"poll_interval_sec" yaml:"poll_interval_sec"`
	PollMaxAttempts   *int   `json:"poll_max_attempts" yaml:"poll_max_attempts"`
	PersistPending    *bool  `json:"persist_pending" yaml:"persist_pending"`
}

// Load reads configuration from an optional .env file, an optional YAML/JSON
// file and the environment, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		VAPIAPIKey:    strings.TrimSpace(os.Getenv("VAPI_API_KEY")),
		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GroupMeBotID:  os.Getenv("GROUPME_BOT_ID"),
		GroupMeURL:    getEnv("GROUPME_URL", defaultGroupMeURL),
		Environment:   getEnv("ENVIRONMENT", "production"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
		HTTPTimeout:   defaultHTTPTimeoutSec * time.Second,
		PollInterval:  defaultPollIntervalSec * time.Second,
		OpenAIBaseURL: defaultOpenAIBaseURL,
	}
	cfg.ConfigPath = getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))

	fileCfg, fileErr := loadFileConfig(cfg.ConfigPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, errors.Wrapf(fileErr, "config load failed (%s)", cfg.ConfigPath)
		}
		log.Debug().Err(fileErr).Str("path", cfg.ConfigPath).Msg("config file not loaded, using defaults")
	}

	cfg.VAPIBaseURL = strings.TrimRight(firstNonEmpty(os.Getenv("VAPI_BASE_URL"), fileCfg.VAPIBaseURL, defaultVAPIBaseURL), "/")
	cfg.AssistantID = strings.TrimSpace(firstNonEmpty(os.Getenv("VAPI_ASSISTANT_ID"), fileCfg.AssistantID))
	cfg.PhoneNumberID = strings.TrimSpace(firstNonEmpty(os.Getenv("VAPI_PHONE_NUMBER_ID"), fileCfg.PhoneNumberID))
	cfg.ClassifierBackend = strings.ToLower(strings.TrimSpace(firstNonEmpty(os.Getenv("CLASSIFIER_BACKEND"), fileCfg.ClassifierBackend, BackendGemini)))
	cfg.ClassifierModel = strings.TrimSpace(firstNonEmpty(os.Getenv("CLASSIFIER_MODEL"), fileCfg.ClassifierModel))
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = defaultGeminiModel
		if cfg.ClassifierBackend == BackendOpenAI {
			cfg.ClassifierModel = defaultOpenAIModel
		}
	}
	cfg.OpenAIBaseURL = strings.TrimRight(firstNonEmpty(os.Getenv("OPENAI_BASE_URL"), cfg.OpenAIBaseURL), "/")
	cfg.PromptPath = firstNonEmpty(os.Getenv("PROMPT_PATH"), fileCfg.PromptPath, cfg.ConfigPath)
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, defaultDBFile)

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	pollSec := defaultPollIntervalSec
	if fileCfg.PollIntervalSec != nil && *fileCfg.PollIntervalSec > 0 {
		pollSec = *fileCfg.PollIntervalSec
	}
	if v, ok, err := parseIntEnv("POLL_INTERVAL_SEC"); err != nil {
		if cfg.StrictConfig {
			return cfg, errors.Wrap(err, "invalid POLL_INTERVAL_SEC")
		}
		log.Warn().Err(err).Msg("invalid POLL_INTERVAL_SEC, using default")
	} else if ok && v > 0 {
		pollSec = v
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	cfg.PollMaxAttempts = defaultPollAttempts
	if fileCfg.PollMaxAttempts != nil && *fileCfg.PollMaxAttempts > 0 {
		cfg.PollMaxAttempts = *fileCfg.PollMaxAttempts
	}
	if v, ok, err := parseIntEnv("POLL_MAX_ATTEMPTS"); err != nil {
		if cfg.StrictConfig {
			return cfg, errors.Wrap(err, "invalid POLL_MAX_ATTEMPTS")
		}
		log.Warn().Err(err).Msg("invalid POLL_MAX_ATTEMPTS, using default")
	} else if ok && v > 0 {
		cfg.PollMaxAttempts = v
	}
	if cfg.PollMaxAttempts > maxPollAttempts {
		log.Warn().Int("requested", cfg.PollMaxAttempts).Int("max", maxPollAttempts).Msg("POLL_MAX_ATTEMPTS capped")
		cfg.PollMaxAttempts = maxPollAttempts
	}

	if v, ok, err := parseIntEnv("HTTP_TIMEOUT_SEC"); err != nil {
		return cfg, errors.Wrap(err, "invalid HTTP_TIMEOUT_SEC")
	} else if ok {
		if v <= 0 {
			return cfg, errors.New("HTTP_TIMEOUT_SEC must be positive")
		}
		cfg.HTTPTimeout = time.Duration(v) * time.Second
	}

	if fileCfg.PersistPending != nil {
		cfg.PersistPending = *fileCfg.PersistPending
	}
	if strings.TrimSpace(os.Getenv("PERSIST_PENDING")) != "" {
		cfg.PersistPending = parseBoolEnv("PERSIST_PENDING")
	}

	if err := cfg.Validate(); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Warn().Err(err).Msg("config validation failed (continuing)")
	}

	return cfg, nil
}

// Validate reports missing credentials and inconsistent settings.
func (c Config) Validate() error {
	var missing []string
	if c.VAPIAPIKey == "" {
		missing = append(missing, "VAPI_API_KEY")
	}
	if c.AssistantID == "" {
		missing = append(missing, "VAPI_ASSISTANT_ID")
	}
	if c.PhoneNumberID == "" {
		missing = append(missing, "VAPI_PHONE_NUMBER_ID")
	}
	switch c.ClassifierBackend {
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		return errors.Errorf("unknown CLASSIFIER_BACKEND %q", c.ClassifierBackend)
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.PollMaxAttempts <= 0 {
		return errors.New("poll max attempts must be positive")
	}
	return nil
}

// Development reports whether human-readable console output is preferred.
func (c Config) Development() bool {
	return strings.EqualFold(c.Environment, "development") || strings.EqualFold(c.Environment, "local")
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}
