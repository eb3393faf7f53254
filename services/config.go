package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	Session   SessionConfig
	Team      TeamConfig
	Scenario  ScenarioConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

// DatabaseConfig selects the store. Driver is "postgres", "sqlite" or empty
// for no persistence.
type DatabaseConfig struct {
	Driver       string
	URL          string
	SQLitePath   string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GroqAPIKey       string
	GroqBaseURL      string
	GroqModel        string
	GeminiAPIKey     string
	GeminiModel      string
	PersonaProvider  string
	PersonaTimeout   time.Duration
	EvaluatorTimeout time.Duration
}

type SessionConfig struct {
	IdleTimeout time.Duration
	Retention   time.Duration
}

type TeamConfig struct {
	EmailDomain string
}

type ScenarioConfig struct {
	CatalogPath string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

const (
	PersonaProviderGroq   = "groq"
	PersonaProviderGemini = "gemini"

	DefaultGroqBaseURL = "https://api.groq.com/openai/v1/"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("groq.api_key", "")
	viper.SetDefault("groq.base_url", DefaultGroqBaseURL)
	viper.SetDefault("groq.model", DefaultGroqModel)
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", DefaultGeminiModel)
	viper.SetDefault("persona.provider", PersonaProviderGroq)
	viper.SetDefault("persona.timeout", "10s")
	viper.SetDefault("evaluator.timeout", "90s")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.sqlite_path", "users.db")
	viper.SetDefault("database.seed", "false")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("session.idle_timeout", "10m")
	viper.SetDefault("session.retention", "30m")
	viper.SetDefault("team.email_domain", "aerialcanvas.com")
	viper.SetDefault("scenario.catalog_path", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	viper.BindEnv("groq.model", "GROQ_MODEL")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("persona.provider", "PERSONA_PROVIDER")
	viper.BindEnv("persona.timeout", "PERSONA_TIMEOUT")
	viper.BindEnv("evaluator.timeout", "EVALUATOR_TIMEOUT")
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.sqlite_path", "DATABASE_SQLITE_PATH")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("session.idle_timeout", "SESSION_IDLE_TIMEOUT")
	viper.BindEnv("session.retention", "SESSION_RETENTION")
	viper.BindEnv("team.email_domain", "TEAM_EMAIL_DOMAIN")
	viper.BindEnv("scenario.catalog_path", "SCENARIO_CATALOG_PATH")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			Driver:       viper.GetString("database.driver"),
			URL:          viper.GetString("database.url"),
			SQLitePath:   viper.GetString("database.sqlite_path"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GroqAPIKey:       viper.GetString("groq.api_key"),
			GroqBaseURL:      viper.GetString("groq.base_url"),
			GroqModel:        viper.GetString("groq.model"),
			GeminiAPIKey:     viper.GetString("gemini.api_key"),
			GeminiModel:      viper.GetString("gemini.model"),
			PersonaProvider:  viper.GetString("persona.provider"),
			PersonaTimeout:   viper.GetDuration("persona.timeout"),
			EvaluatorTimeout: viper.GetDuration("evaluator.timeout"),
		},
		Session: SessionConfig{
			IdleTimeout: viper.GetDuration("session.idle_timeout"),
			Retention:   viper.GetDuration("session.retention"),
		},
		Team: TeamConfig{
			EmailDomain: viper.GetString("team.email_domain"),
		},
		Scenario: ScenarioConfig{
			CatalogPath: viper.GetString("scenario.catalog_path"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
