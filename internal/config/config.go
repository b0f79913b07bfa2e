package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the CLI and the API.
type Config struct {
	Log       LogConfig
	Ledger    LedgerConfig
	Answer    AnswerConfig
	Generator GeneratorConfig
	API       APIConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// LedgerConfig selects where transactions are read from.
type LedgerConfig struct {
	// Source is a file path or a gs://, bigquery:// or firestore:// URI.
	Source  string
	MaxRows int
	UserID  string
	// RulesFile replaces the built-in classifier rules when set.
	RulesFile   string
	SnapshotTTL time.Duration
}

type AnswerConfig struct {
	IncludeDescriptionAmounts bool
}

type GeneratorConfig struct {
	Model          string
	FallbackModels []string
	Temperature    float32
	APIVersion     string
}

type APIConfig struct {
	Port      string
	RateLimit float64
	RateBurst int
}

var envFiles = []string{".env", "../.env", "../../.env"}

// Load reads the first .env file found, then the process environment.
// Malformed numbers, booleans and durations are errors.
func Load() (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var p parser

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Ledger: LedgerConfig{
			Source:      getEnv("LEDGER_SOURCE", "data/transactions.csv"),
			MaxRows:     p.int("LEDGER_MAX_ROWS", "0"),
			UserID:      getEnv("LEDGER_USER_ID", ""),
			RulesFile:   getEnv("CLASSIFIER_RULES", ""),
			SnapshotTTL: p.duration("SNAPSHOT_TTL", "5m"),
		},
		Answer: AnswerConfig{
			IncludeDescriptionAmounts: p.bool("ANSWER_DESCRIPTION_AMOUNTS", "false"),
		},
		Generator: GeneratorConfig{
			Model:          getEnv("GENAI_MODEL", "gemini-2.5-flash"),
			FallbackModels: splitList(getEnv("GENAI_FALLBACK_MODELS", "gemini-2.0-flash-001")),
			Temperature:    float32(p.float("GENAI_TEMPERATURE", "0.1")),
			APIVersion:     getEnv("GENAI_API_VERSION", "v1"),
		},
		API: APIConfig{
			Port:      getEnv("API_PORT", "8080"),
			RateLimit: p.float("API_RATE_LIMIT", "10"),
			RateBurst: p.int("API_RATE_BURST", "30"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.Ledger.MaxRows < 0 {
		return nil, fmt.Errorf("LEDGER_MAX_ROWS must not be negative, got %d", cfg.Ledger.MaxRows)
	}
	if cfg.Ledger.SnapshotTTL <= 0 {
		return nil, fmt.Errorf("SNAPSHOT_TTL must be positive, got %s", cfg.Ledger.SnapshotTTL)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) int(key, def string) int {
	v := getEnv(key, def)
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return n
}

func (p *parser) float(key, def string) float64 {
	v := getEnv(key, def)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
	}
	return f
}

func (p *parser) bool(key, def string) bool {
	v := getEnv(key, def)
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return b
}

func (p *parser) duration(key, def string) time.Duration {
	v := getEnv(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return d
}
