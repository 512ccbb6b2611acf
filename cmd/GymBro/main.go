package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/GymBro/internal/api"
	"github.com/BTreeMap/GymBro/internal/flow"
	"github.com/BTreeMap/GymBro/internal/genai"
	"github.com/BTreeMap/GymBro/internal/lockfile"
	"github.com/BTreeMap/GymBro/internal/media"
	"github.com/BTreeMap/GymBro/internal/messaging"
	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/reminder"
	"github.com/BTreeMap/GymBro/internal/scheduler"
	"github.com/BTreeMap/GymBro/internal/sheets"
	"github.com/BTreeMap/GymBro/internal/store"
	"github.com/BTreeMap/GymBro/internal/twiliowhatsapp"
	"github.com/BTreeMap/GymBro/internal/util"
	"github.com/BTreeMap/GymBro/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for GymBro state data
	DefaultStateDir = "/var/lib/gymbro"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "gymbro.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow device store filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultPort is the port the webhook server listens on
	DefaultPort = "3000"
)

// Messaging providers
const (
	ProviderCloudAPI  = "cloudapi"
	ProviderTwilio    = "twilio"
	ProviderWhatsmeow = "whatsmeow"
)

// Store backends
const (
	BackendSheets = "sheets"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

func main() {
	initializeLogger("")

	config := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)

	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping GymBro", "provider", flags.provider, "store", flags.storeBackend, "addr", flags.apiAddr)
	if err := run(ctx, flags); err != nil {
		slog.Error("GymBro failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("GymBro exited successfully")
}

// Config holds environment configuration
type Config struct {
	VerifyToken   string
	APIToken      string
	BusinessPhone string
	APIVersion    string
	APIAddr       string
	SendRate      float64

	Provider         string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioWebhookURL string
	WhatsAppDSN      string

	StoreBackend      string
	DatabaseURL       string
	StateDir          string
	SpreadsheetID     string
	GoogleCredentials string // base64 service account key
	GoogleCredsFile   string

	GenAIProvider string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	GenAIModel    string

	MediaBucket  string
	MediaRegion  string
	MediaBaseURL string

	Timezone         string
	ReminderSchedule string
	LogLevel         string
}

// Flags holds the effective settings after command line overrides
type Flags struct {
	Config
	provider         string
	storeBackend     string
	stateDir         string
	dbDSN            string
	apiAddr          string
	reminderSchedule string
	qrOutput         string
	numeric          bool
}

// initializeLogger sets up structured logging. Unknown or empty levels mean debug.
func initializeLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		VerifyToken:   os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		APIToken:      os.Getenv("API_TOKEN"),
		BusinessPhone: os.Getenv("BUSINESS_PHONE"),
		APIVersion:    util.GetEnv("API_VERSION", messaging.DefaultAPIVersion),
		APIAddr:       os.Getenv("API_ADDR"),
		SendRate:      util.ParseFloatEnv("SEND_RATE_PER_SEC", messaging.DefaultSendRatePerSec),

		Provider:         strings.ToLower(os.Getenv("MESSAGING_PROVIDER")),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),
		WhatsAppDSN:      os.Getenv("WHATSAPP_DB_DSN"),

		StoreBackend:      strings.ToLower(os.Getenv("STORE_BACKEND")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StateDir:          util.GetEnv("GYMBRO_STATE_DIR", DefaultStateDir),
		SpreadsheetID:     os.Getenv("SPREADSHEET_ID"),
		GoogleCredentials: os.Getenv("GOOGLE_CREDENTIALS_BASE64"),
		GoogleCredsFile:   os.Getenv("GOOGLE_CREDENTIALS_FILE"),

		GenAIProvider: strings.ToLower(util.GetEnv("GENAI_PROVIDER", genai.ProviderGemini)),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		GenAIModel:    os.Getenv("GENAI_MODEL"),

		MediaBucket:  os.Getenv("MEDIA_S3_BUCKET"),
		MediaRegion:  os.Getenv("MEDIA_S3_REGION"),
		MediaBaseURL: os.Getenv("MEDIA_BASE_URL"),

		Timezone:         util.GetEnv("TIMEZONE", models.DefaultTimezone),
		ReminderSchedule: util.GetEnv("REMINDER_SCHEDULE", scheduler.DailyReminder),
		LogLevel:         os.Getenv("LOG_LEVEL"),
	}

	if config.APIAddr == "" {
		config.APIAddr = ":" + util.GetEnv("PORT", DefaultPort)
	}
	if config.Provider == "" {
		config.Provider = defaultProvider(config)
		slog.Debug("No MESSAGING_PROVIDER set, inferred from credentials", "provider", config.Provider)
	}
	if config.StoreBackend == "" {
		config.StoreBackend = BackendSQL
		if config.SpreadsheetID != "" {
			config.StoreBackend = BackendSheets
		}
		slog.Debug("No STORE_BACKEND set, inferred", "backend", config.StoreBackend)
	}

	slog.Debug("environment variables loaded",
		"WEBHOOK_VERIFY_TOKEN_SET", config.VerifyToken != "",
		"API_TOKEN_SET", config.APIToken != "",
		"BUSINESS_PHONE", config.BusinessPhone,
		"API_ADDR", config.APIAddr,
		"MESSAGING_PROVIDER", config.Provider,
		"STORE_BACKEND", config.StoreBackend,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"GYMBRO_STATE_DIR", config.StateDir,
		"SPREADSHEET_ID_SET", config.SpreadsheetID != "",
		"GENAI_PROVIDER", config.GenAIProvider,
		"MEDIA_S3_BUCKET", config.MediaBucket,
		"TIMEZONE", config.Timezone,
		"REMINDER_SCHEDULE", config.ReminderSchedule)

	return config
}

// defaultProvider picks the transport whose credentials are present.
func defaultProvider(config Config) string {
	switch {
	case config.APIToken != "":
		return ProviderCloudAPI
	case config.TwilioAccountSID != "":
		return ProviderTwilio
	default:
		return ProviderWhatsmeow
	}
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	return parseFlags(flag.CommandLine, os.Args[1:], config)
}

func parseFlags(fs *flag.FlagSet, args []string, config Config) Flags {
	provider := fs.String("provider", config.Provider, "messaging provider: cloudapi, twilio or whatsmeow (overrides $MESSAGING_PROVIDER)")
	backend := fs.String("store", config.StoreBackend, "store backend: sheets, sql or memory (overrides $STORE_BACKEND)")
	stateDir := fs.String("state-dir", config.StateDir, "state directory for GymBro data (overrides $GYMBRO_STATE_DIR)")
	dbDSN := fs.String("db-dsn", config.DatabaseURL, "SQLite path or Postgres DSN for the sql store (overrides $DATABASE_URL)")
	apiAddr := fs.String("api-addr", config.APIAddr, "webhook server address (overrides $API_ADDR and $PORT)")
	schedule := fs.String("reminder-schedule", config.ReminderSchedule, "cron expression of the reminder sweep (overrides $REMINDER_SCHEDULE)")
	qrOutput := fs.String("qr-output", "", "path to write the whatsmeow login QR code")
	numeric := fs.Bool("numeric-code", false, "print the whatsmeow login code instead of a QR code")

	if err := fs.Parse(args); err != nil {
		slog.Warn("failed to parse flags, using environment values", "error", err)
	}

	flags := Flags{
		Config:           config,
		provider:         strings.ToLower(*provider),
		storeBackend:     strings.ToLower(*backend),
		stateDir:         *stateDir,
		dbDSN:            *dbDSN,
		apiAddr:          *apiAddr,
		reminderSchedule: *schedule,
		qrOutput:         *qrOutput,
		numeric:          *numeric,
	}
	if flags.dbDSN == "" {
		flags.dbDSN = filepath.Join(flags.stateDir, DefaultDBFileName)
	}
	if flags.WhatsAppDSN == "" {
		flags.WhatsAppDSN = "file:" + filepath.Join(flags.stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}

	slog.Debug("flags parsed",
		"provider", flags.provider,
		"store", flags.storeBackend,
		"stateDir", flags.stateDir,
		"dbDSN_set", flags.dbDSN != "",
		"apiAddr", flags.apiAddr,
		"reminderSchedule", flags.reminderSchedule)
	return flags
}

// run wires every module and blocks until ctx is cancelled or the server fails.
func run(ctx context.Context, flags Flags) error {
	if err := os.MkdirAll(flags.stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	lock, err := lockfile.AcquireLock(flags.stateDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("failed to release state lock", "error", err)
		}
	}()

	loc := models.LoadLocation(flags.Timezone)

	st, err := buildStore(ctx, flags)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := buildMessagingService(ctx, flags)
	if err != nil {
		return err
	}
	messenger := messaging.Instrument(svc)
	if err := messenger.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer messenger.Stop()

	engineOpts := []flow.EngineOption{flow.WithLocation(loc)}
	catalog, err := media.NewCatalog(ctx, buildMediaOptions(flags)...)
	switch {
	case errors.Is(err, media.ErrNotConfigured):
		slog.Info("No media source configured; catalog and gym photo will not be sent")
	case err != nil:
		return fmt.Errorf("failed to set up media catalog: %w", err)
	default:
		engineOpts = append(engineOpts, flow.WithMediaCatalog(catalog))
	}

	engine := flow.NewEngine(messenger, st, st, st, buildOracle(flags), flow.NewRateLimiter(), engineOpts...)
	router := flow.NewRouter(engine, flow.NewInMemorySessionStore(), messenger, flow.WithTimer(flow.NewSimpleTimer()))
	defer router.Stop()

	if events := messenger.Inbound(); events != nil {
		go messaging.Pump(ctx, events, router.Handle)
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	sweeper := reminder.NewSweeper(st, messenger, reminder.WithLocation(loc))
	if err := sweeper.Start(ctx, sched, flags.reminderSchedule); err != nil {
		return err
	}

	server := api.NewServer(router, buildAPIOptions(flags, messenger, router)...)
	return server.Run(ctx)
}

// buildStore opens the configured backend.
func buildStore(ctx context.Context, flags Flags) (store.Store, error) {
	switch flags.storeBackend {
	case BackendSheets:
		creds, err := loadGoogleCredentials(flags.Config)
		if err != nil {
			return nil, err
		}
		client, err := sheets.NewClient(ctx, buildSheetsOptions(flags, creds)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets client: %w", err)
		}
		slog.Debug("Using Google Sheets store", "spreadsheet", flags.SpreadsheetID)
		return store.NewSheetsStore(client), nil
	case BackendSQL:
		opts := buildStoreOptions(flags)
		if store.DetectDSNType(flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			return store.NewPostgresStore(opts...)
		}
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", flags.dbDSN)
		return store.NewSQLiteStore(opts...)
	case BackendMemory:
		slog.Warn("Using in-memory store; bookings and pauses are lost on restart")
		return store.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: store backend %q", models.ErrUnsupportedProvider, flags.storeBackend)
	}
}

// loadGoogleCredentials returns the service account key from base64 or a file.
func loadGoogleCredentials(config Config) ([]byte, error) {
	if config.GoogleCredentials != "" {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(config.GoogleCredentials))
		if err != nil {
			return nil, fmt.Errorf("invalid GOOGLE_CREDENTIALS_BASE64: %w", err)
		}
		return data, nil
	}
	if config.GoogleCredsFile != "" {
		data, err := os.ReadFile(config.GoogleCredsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read GOOGLE_CREDENTIALS_FILE: %w", err)
		}
		return data, nil
	}
	return nil, sheets.ErrNoCredentials
}

// buildMessagingService creates the transport for the configured provider.
func buildMessagingService(ctx context.Context, flags Flags) (messaging.Service, error) {
	switch flags.provider {
	case ProviderCloudAPI:
		client, err := messaging.NewCloudAPIClient(buildCloudAPIOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud api client: %w", err)
		}
		return client, nil
	case ProviderTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case ProviderWhatsmeow:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create whatsmeow client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("%w: messaging provider %q", models.ErrUnsupportedProvider, flags.provider)
	}
}

// unavailableOracle answers every question with an error so the AI flow apologizes.
type unavailableOracle struct {
	err error
}

func (o unavailableOracle) Ask(ctx context.Context, question string) (string, error) {
	return "", o.err
}

// buildOracle creates the GenAI client, degrading to an apologizing oracle without a key.
func buildOracle(flags Flags) flow.QAOracle {
	client, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Warn("GenAI client unavailable, AI questions will be answered with an apology", "error", err)
		return unavailableOracle{err: err}
	}
	return client
}

// buildCloudAPIOptions constructs Cloud API client options
func buildCloudAPIOptions(flags Flags) []messaging.CloudAPIOption {
	opts := []messaging.CloudAPIOption{
		messaging.WithToken(flags.APIToken),
		messaging.WithPhoneNumberID(flags.BusinessPhone),
	}
	if flags.APIVersion != "" {
		opts = append(opts, messaging.WithAPIVersion(flags.APIVersion))
	}
	if flags.SendRate > 0 {
		opts = append(opts, messaging.WithSendRate(flags.SendRate))
	}
	return opts
}

// buildTwilioOptions constructs Twilio client options
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	return []twiliowhatsapp.Option{
		twiliowhatsapp.WithAccountSID(flags.TwilioAccountSID),
		twiliowhatsapp.WithAuthToken(flags.TwilioAuthToken),
		twiliowhatsapp.WithFromNumber(flags.TwilioFromNumber),
	}
}

// buildWhatsAppOptions constructs whatsmeow client options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(flags.qrOutput))
	}
	if flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if flags.WhatsAppDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(flags.WhatsAppDSN))
	}
	return waOpts
}

// buildStoreOptions constructs SQL store options
func buildStoreOptions(flags Flags) []store.Option {
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		return []store.Option{store.WithPostgresDSN(flags.dbDSN)}
	}
	return []store.Option{store.WithSQLiteDSN(flags.dbDSN)}
}

// buildSheetsOptions constructs Sheets client options
func buildSheetsOptions(flags Flags, creds []byte) []sheets.Option {
	return []sheets.Option{
		sheets.WithSpreadsheetID(flags.SpreadsheetID),
		sheets.WithCredentialsJSON(creds),
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	opts := []genai.Option{genai.WithProvider(flags.GenAIProvider)}
	key := flags.GeminiAPIKey
	if flags.GenAIProvider == genai.ProviderOpenAI {
		key = flags.OpenAIAPIKey
	}
	if key != "" {
		opts = append(opts, genai.WithAPIKey(key))
	}
	if flags.GenAIModel != "" {
		opts = append(opts, genai.WithModel(flags.GenAIModel))
	}
	return opts
}

// buildMediaOptions constructs media catalog options
func buildMediaOptions(flags Flags) []media.Option {
	var opts []media.Option
	if flags.MediaBucket != "" {
		opts = append(opts, media.WithBucket(flags.MediaBucket, flags.MediaRegion))
	}
	if flags.MediaBaseURL != "" {
		opts = append(opts, media.WithBaseURL(flags.MediaBaseURL))
	}
	return opts
}

// buildAPIOptions constructs webhook server options
func buildAPIOptions(flags Flags, messenger *messaging.InstrumentedService, router *flow.Router) []api.Option {
	opts := []api.Option{
		api.WithAddr(flags.apiAddr),
		api.WithVerifyToken(flags.VerifyToken),
		api.WithSessionCounter(router),
		api.WithButtonResolver(messenger),
	}
	if flags.provider == ProviderTwilio && flags.TwilioAuthToken != "" {
		opts = append(opts, api.WithTwilioValidation(flags.TwilioAuthToken, flags.TwilioWebhookURL))
	}
	return opts
}
