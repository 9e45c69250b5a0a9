package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glowdesk/engage/internal/api"
	"github.com/glowdesk/engage/internal/engine"
	"github.com/glowdesk/engage/internal/genai"
	"github.com/glowdesk/engage/internal/messaging"
	"github.com/glowdesk/engage/internal/scheduler"
	"github.com/glowdesk/engage/internal/store"
	"github.com/joho/godotenv"
)

// Default configuration constants.
const (
	// DefaultStateDir is the default directory for engage state data.
	DefaultStateDir = "/var/lib/engage"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "engage.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	generator, err := genai.NewClient(
		genai.WithAPIKey(*flags.openaiKey),
		genai.WithBaseURL(*flags.openaiBaseURL),
		genai.WithModel(*flags.generationModel),
	)
	if err != nil {
		slog.Error("Failed to configure generation client", "error", err)
		os.Exit(1)
	}
	evaluator, err := genai.NewClient(
		genai.WithAPIKey(*flags.openaiKey),
		genai.WithBaseURL(*flags.openaiBaseURL),
		genai.WithModel(*flags.evaluationModel),
	)
	if err != nil {
		slog.Error("Failed to configure evaluation client", "error", err)
		os.Exit(1)
	}

	messenger := buildMessenger(config)
	sched := scheduler.New(evaluator)
	timer := scheduler.NewSimpleTimer()
	defer timer.Stop()
	dispatcher := scheduler.NewDispatcher(timer, generator, messenger, nil)
	eng := engine.New(generator, evaluator)

	server := api.NewServer(eng, sched, dispatcher, st, api.WithAddr(*flags.apiAddr))
	slog.Info("Bootstrapping engage", "addr", *flags.apiAddr)
	if err := server.Run(); err != nil {
		slog.Error("engage failed to run", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration.
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	OpenAIBaseURL    string
	GenerationModel  string
	EvaluationModel  string
	APIAddr          string
	TwilioSID        string
	TwilioToken      string
	TwilioFromNumber string
}

// Flags holds command line flag values.
type Flags struct {
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	openaiBaseURL   *string
	generationModel *string
	evaluationModel *string
	apiAddr         *string
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and a
// .env file when present.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("ENGAGE_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		GenerationModel:  os.Getenv("ENGAGE_GENERATION_MODEL"),
		EvaluationModel:  os.Getenv("ENGAGE_EVALUATION_MODEL"),
		APIAddr:          os.Getenv("API_ADDR"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ENGAGE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ENGAGE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"TWILIO_CONFIGURED", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for engage data (overrides $ENGAGE_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or PostgreSQL URL (overrides $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiBaseURL:   flag.String("openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible API base URL (overrides $OPENAI_BASE_URL)"),
		generationModel: flag.String("generation-model", config.GenerationModel, "model for reply generation (overrides $ENGAGE_GENERATION_MODEL)"),
		evaluationModel: flag.String("evaluation-model", config.EvaluationModel, "model for evaluation and scheduling decisions (overrides $ENGAGE_EVALUATION_MODEL)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore opens the configured persistence backend.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildMessenger picks the delivery backend from configuration.
func buildMessenger(config Config) messaging.Service {
	if config.TwilioSID != "" && config.TwilioToken != "" && config.TwilioFromNumber != "" {
		svc, err := messaging.NewTwilioService(messaging.TwilioOpts{
			AccountSID: config.TwilioSID,
			AuthToken:  config.TwilioToken,
			FromNumber: config.TwilioFromNumber,
		})
		if err == nil {
			slog.Info("Using Twilio messaging backend")
			return svc
		}
		slog.Warn("Twilio configuration rejected, falling back to log-only delivery", "error", err)
	}
	slog.Info("Using log-only messaging backend")
	return messaging.NewLogService()
}
