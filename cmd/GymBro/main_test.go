package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/GymBro/internal/genai"
	"github.com/BTreeMap/GymBro/internal/media"
	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/scheduler"
	"github.com/BTreeMap/GymBro/internal/sheets"
	"github.com/BTreeMap/GymBro/internal/store"
)

var configEnv = []string{
	"WEBHOOK_VERIFY_TOKEN", "API_TOKEN", "BUSINESS_PHONE", "API_VERSION", "API_ADDR", "PORT",
	"SEND_RATE_PER_SEC", "MESSAGING_PROVIDER", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN",
	"TWILIO_FROM_NUMBER", "TWILIO_WEBHOOK_URL", "WHATSAPP_DB_DSN", "STORE_BACKEND", "DATABASE_URL",
	"GYMBRO_STATE_DIR", "SPREADSHEET_ID", "GOOGLE_CREDENTIALS_BASE64", "GOOGLE_CREDENTIALS_FILE",
	"GENAI_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "GENAI_MODEL", "MEDIA_S3_BUCKET",
	"MEDIA_S3_REGION", "MEDIA_BASE_URL", "TIMEZONE", "REMINDER_SCHEDULE", "LOG_LEVEL",
}

// clearConfigEnv blanks every variable the service reads for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("Expected default state dir %q, got %q", DefaultStateDir, config.StateDir)
	}
	if config.APIAddr != ":"+DefaultPort {
		t.Errorf("Expected default address :%s, got %q", DefaultPort, config.APIAddr)
	}
	if config.Provider != ProviderWhatsmeow {
		t.Errorf("Expected whatsmeow without credentials, got %q", config.Provider)
	}
	if config.StoreBackend != BackendSQL {
		t.Errorf("Expected sql store without a spreadsheet, got %q", config.StoreBackend)
	}
	if config.GenAIProvider != genai.ProviderGemini {
		t.Errorf("Expected gemini provider, got %q", config.GenAIProvider)
	}
	if config.Timezone != models.DefaultTimezone {
		t.Errorf("Expected default timezone, got %q", config.Timezone)
	}
	if config.ReminderSchedule != scheduler.DailyReminder {
		t.Errorf("Expected daily reminder schedule, got %q", config.ReminderSchedule)
	}
}

func TestLoadEnvironmentConfigInference(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("API_TOKEN", "EAAG-token")
	t.Setenv("SPREADSHEET_ID", "sheet-123")
	t.Setenv("PORT", "8080")
	t.Setenv("GENAI_PROVIDER", "OpenAI")

	config := loadEnvironmentConfig()

	if config.Provider != ProviderCloudAPI {
		t.Errorf("Expected cloudapi with an API token, got %q", config.Provider)
	}
	if config.StoreBackend != BackendSheets {
		t.Errorf("Expected sheets with a spreadsheet id, got %q", config.StoreBackend)
	}
	if config.APIAddr != ":8080" {
		t.Errorf("Expected :8080 from PORT, got %q", config.APIAddr)
	}
	if config.GenAIProvider != genai.ProviderOpenAI {
		t.Errorf("Expected lowercased openai provider, got %q", config.GenAIProvider)
	}
}

func TestDefaultProvider(t *testing.T) {
	tests := []struct {
		config Config
		want   string
	}{
		{Config{APIToken: "x", TwilioAccountSID: "AC"}, ProviderCloudAPI},
		{Config{TwilioAccountSID: "AC"}, ProviderTwilio},
		{Config{}, ProviderWhatsmeow},
	}
	for _, tt := range tests {
		if got := defaultProvider(tt.config); got != tt.want {
			t.Errorf("defaultProvider(%+v) = %q, want %q", tt.config, got, tt.want)
		}
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	config := Config{Provider: ProviderCloudAPI, StoreBackend: BackendSheets, StateDir: "/srv/gymbro", APIAddr: ":3000"}
	fs := flag.NewFlagSet("gymbro", flag.ContinueOnError)

	flags := parseFlags(fs, []string{"-provider", "TWILIO", "-store", "memory", "-state-dir", "/tmp/gb", "-numeric-code"}, config)

	if flags.provider != ProviderTwilio {
		t.Errorf("Expected twilio provider, got %q", flags.provider)
	}
	if flags.storeBackend != BackendMemory {
		t.Errorf("Expected memory store, got %q", flags.storeBackend)
	}
	if !flags.numeric {
		t.Error("Expected numeric code flag to be set")
	}
	if want := filepath.Join("/tmp/gb", DefaultDBFileName); flags.dbDSN != want {
		t.Errorf("Expected sqlite path %q in the state dir, got %q", want, flags.dbDSN)
	}
	if want := "file:" + filepath.Join("/tmp/gb", DefaultWhatsAppDBFileName) + "?_foreign_keys=on"; flags.WhatsAppDSN != want {
		t.Errorf("Expected whatsmeow DSN %q, got %q", want, flags.WhatsAppDSN)
	}
	if flags.apiAddr != ":3000" {
		t.Errorf("Expected address from environment, got %q", flags.apiAddr)
	}
}

func TestParseFlagsKeepsDatabaseURL(t *testing.T) {
	config := Config{DatabaseURL: "postgres://u:p@localhost/gymbro", StateDir: "/srv/gymbro"}
	flags := parseFlags(flag.NewFlagSet("gymbro", flag.ContinueOnError), nil, config)
	if flags.dbDSN != config.DatabaseURL {
		t.Errorf("Expected DATABASE_URL to be kept, got %q", flags.dbDSN)
	}
	if len(buildStoreOptions(flags)) != 1 {
		t.Error("Expected one store option")
	}
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	st, err := buildStore(ctx, Flags{storeBackend: BackendMemory})
	if err != nil {
		t.Fatalf("memory store failed: %v", err)
	}
	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Errorf("Expected *store.InMemoryStore, got %T", st)
	}

	dbPath := filepath.Join(t.TempDir(), "gymbro.db")
	st, err = buildStore(ctx, Flags{storeBackend: BackendSQL, dbDSN: dbPath})
	if err != nil {
		t.Fatalf("sqlite store failed: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*store.SQLiteStore); !ok {
		t.Errorf("Expected *store.SQLiteStore, got %T", st)
	}

	if _, err := buildStore(ctx, Flags{storeBackend: "excel"}); !errors.Is(err, models.ErrUnsupportedProvider) {
		t.Errorf("Expected ErrUnsupportedProvider, got %v", err)
	}
	if _, err := buildStore(ctx, Flags{storeBackend: BackendSheets}); !errors.Is(err, sheets.ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials for sheets without credentials, got %v", err)
	}
}

func TestLoadGoogleCredentials(t *testing.T) {
	key := []byte(`{"type":"service_account"}`)

	got, err := loadGoogleCredentials(Config{GoogleCredentials: base64.StdEncoding.EncodeToString(key)})
	if err != nil || string(got) != string(key) {
		t.Errorf("Expected decoded base64 key, got %q, %v", got, err)
	}

	if _, err := loadGoogleCredentials(Config{GoogleCredentials: "%%%"}); err == nil {
		t.Error("Expected error for invalid base64")
	}

	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, key, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err = loadGoogleCredentials(Config{GoogleCredsFile: path})
	if err != nil || string(got) != string(key) {
		t.Errorf("Expected key from file, got %q, %v", got, err)
	}

	if _, err := loadGoogleCredentials(Config{}); !errors.Is(err, sheets.ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestBuildMessagingServiceValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := buildMessagingService(ctx, Flags{provider: "telegram"}); !errors.Is(err, models.ErrUnsupportedProvider) {
		t.Errorf("Expected ErrUnsupportedProvider, got %v", err)
	}
	if _, err := buildMessagingService(ctx, Flags{provider: ProviderCloudAPI}); err == nil {
		t.Error("Expected error for cloudapi without token")
	}

	svc, err := buildMessagingService(ctx, Flags{
		provider: ProviderCloudAPI,
		Config:   Config{APIToken: "token", BusinessPhone: "1234567890"},
	})
	if err != nil {
		t.Fatalf("Expected cloudapi client, got %v", err)
	}
	defer svc.Stop()
}

func TestBuildGenAIOptions(t *testing.T) {
	apply := func(opts []genai.Option) genai.Opts {
		var o genai.Opts
		for _, opt := range opts {
			opt(&o)
		}
		return o
	}

	o := apply(buildGenAIOptions(Flags{Config: Config{GenAIProvider: genai.ProviderGemini, GeminiAPIKey: "g", OpenAIAPIKey: "o"}}))
	if o.APIKey != "g" || o.Provider != genai.ProviderGemini {
		t.Errorf("Expected gemini key, got %+v", o)
	}
	o = apply(buildGenAIOptions(Flags{Config: Config{GenAIProvider: genai.ProviderOpenAI, GeminiAPIKey: "g", OpenAIAPIKey: "o", GenAIModel: "gpt-4o"}}))
	if o.APIKey != "o" || o.Model != "gpt-4o" {
		t.Errorf("Expected openai key and model, got %+v", o)
	}
}

func TestBuildOracleWithoutKey(t *testing.T) {
	oracle := buildOracle(Flags{Config: Config{GenAIProvider: genai.ProviderGemini}})
	if _, err := oracle.Ask(context.Background(), "¿Cuánto cuesta la mensualidad?"); !errors.Is(err, genai.ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey from the fallback oracle, got %v", err)
	}
}

func TestBuildMediaOptions(t *testing.T) {
	if len(buildMediaOptions(Flags{})) != 0 {
		t.Error("Expected no media options without configuration")
	}
	_, err := media.NewCatalog(context.Background(), buildMediaOptions(Flags{})...)
	if !errors.Is(err, media.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	catalog, err := media.NewCatalog(context.Background(), buildMediaOptions(Flags{Config: Config{MediaBaseURL: "https://cdn.example.com/gymbro"}})...)
	if err != nil {
		t.Fatalf("Expected base URL catalog, got %v", err)
	}
	url, err := catalog.URL(context.Background(), media.KeyCatalog)
	if err != nil || url == "" {
		t.Errorf("Expected catalog URL, got %q, %v", url, err)
	}
}

func TestInitializeLogger(t *testing.T) {
	defer initializeLogger("")
	ctx := context.Background()

	initializeLogger("warn")
	if slog.Default().Enabled(ctx, slog.LevelInfo) {
		t.Error("Expected info to be disabled at warn level")
	}
	if !slog.Default().Enabled(ctx, slog.LevelWarn) {
		t.Error("Expected warn to be enabled at warn level")
	}

	initializeLogger("")
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		t.Error("Expected debug by default")
	}
}
