// Package config loads service configuration from defaults, an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"mtm-automation/pkg/mtm"
	"mtm-automation/validation"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml"}

// Config is the full service configuration.
type Config struct {
	Timezone string         `koanf:"timezone" prop:"DEFAULT_TZ" validate:"required,timezone"`
	Epoch    string         `koanf:"epoch" prop:"PROGRAM_EPOCH" validate:"required,ymd"`
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Google   GoogleConfig   `koanf:"google"`
	YouTube  YouTubeConfig  `koanf:"youtube"`
	Drive    DriveConfig    `koanf:"drive"`
	Prompt   PromptConfig   `koanf:"prompt"`
	Gemini   GeminiConfig   `koanf:"gemini"`
	Facebook FacebookConfig `koanf:"facebook"`
	Email    EmailConfig    `koanf:"email"`
	Cron     CronConfig     `koanf:"cron"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port      string `koanf:"port" prop:"PORT" validate:"required"`
	WebToken  string `koanf:"web_token" prop:"SCRIPT_WEB_TOKEN"`
	RateLimit int    `koanf:"rate_limit" prop:"RATE_LIMIT_PER_MINUTE" validate:"gte=0"`
}

// StorageConfig selects the property store backend.
type StorageConfig struct {
	Backend    string `koanf:"backend" prop:"STORAGE_BACKEND" validate:"oneof=auto gcs local badger"`
	Bucket     string `koanf:"bucket" prop:"STORAGE_BUCKET" validate:"required_if=Backend gcs"`
	LocalPath  string `koanf:"local_path" prop:"LOCAL_STORAGE"`
	BadgerPath string `koanf:"badger_path" prop:"BADGER_PATH" validate:"required_if=Backend badger"`
}

// Resolved returns the effective backend: a bucket wins, then a local directory.
func (c StorageConfig) Resolved() string {
	if c.Backend != "" && c.Backend != "auto" {
		return c.Backend
	}
	if c.Bucket != "" {
		return "gcs"
	}
	return "local"
}

// GoogleConfig holds credentials shared by the Google API clients.
type GoogleConfig struct {
	CredentialsJSON string `koanf:"credentials_json" prop:"GOOGLE_CREDENTIALS_JSON"`
	ClientID        string `koanf:"client_id" prop:"YT_CLIENT_ID"`
	ClientSecret    string `koanf:"client_secret" prop:"YT_CLIENT_SECRET"`
	RefreshToken    string `koanf:"refresh_token" prop:"YT_REFRESH_TOKEN"`
}

// HasUserToken reports whether an OAuth refresh token is configured.
func (c GoogleConfig) HasUserToken() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// YouTubeConfig holds channel resources and finder tuning.
type YouTubeConfig struct {
	PersistentStreamID string        `koanf:"persistent_stream_id" prop:"PERSISTENT_STREAM_ID"`
	GeneralPlaylistID  string        `koanf:"general_playlist_id" prop:"GENERAL_YT_PLAYLIST_ID"`
	HalfPlaylistID     string        `koanf:"half_playlist_id" prop:"HALF_MTM_PLAYLIST_ID"`
	FullPlaylistID     string        `koanf:"full_playlist_id" prop:"FULL_MTM_PLAYLIST_ID"`
	BackupPlaylistID   string        `koanf:"backup_playlist_id" prop:"BACKUP_YT_PLAYLIST_ID"`
	BackupMode         string        `koanf:"backup_mode" prop:"BACKUP_SEARCH_MODE" validate:"oneof=uploads search"`
	UploadsWindow      int           `koanf:"uploads_window" prop:"BACKUP_UPLOADS_WINDOW" validate:"gte=1,lte=50"`
	SearchPages        int           `koanf:"search_pages" prop:"BACKUP_SEARCH_PAGES" validate:"gte=1,lte=20"`
	BindAttempts       int           `koanf:"bind_attempts" prop:"BIND_MAX_ATTEMPTS" validate:"gte=1"`
	BindInitialDelay   time.Duration `koanf:"bind_initial_delay" prop:"BIND_INITIAL_DELAY"`
}

// Playlists returns the scheduling playlist identifiers.
func (c YouTubeConfig) Playlists() mtm.PlaylistIDs {
	return mtm.PlaylistIDs{General: c.GeneralPlaylistID, Half: c.HalfPlaylistID, Full: c.FullPlaylistID}
}

// RequireSchedule checks what the schedule pipeline needs.
func (c YouTubeConfig) RequireSchedule() error {
	return validation.Config(struct {
		PersistentStreamID string `prop:"PERSISTENT_STREAM_ID" validate:"required"`
	}{c.PersistentStreamID})
}

// RequireBackup checks what the backup pipeline needs.
func (c YouTubeConfig) RequireBackup() error {
	return validation.Config(struct {
		BackupPlaylistID string `prop:"BACKUP_YT_PLAYLIST_ID" validate:"required"`
	}{c.BackupPlaylistID})
}

// DriveConfig locates thumbnails.
type DriveConfig struct {
	ThumbFolderID string `koanf:"thumb_folder_id" prop:"THUMB_FOLDER_ID" validate:"required"`
	LocalRoot     string `koanf:"local_root" prop:"LOCAL_DRIVE_DIR"` // Serve folders from disk instead of Drive
}

// PromptConfig locates the prompt variant pools.
type PromptConfig struct {
	SpreadsheetID string `koanf:"spreadsheet_id" prop:"VARIANTS_SPREADSHEET_ID"`
	VariantsFile  string `koanf:"variants_file" prop:"VARIANTS_FILE"`
}

// Validate requires one variant source.
func (c PromptConfig) Validate() error {
	if c.SpreadsheetID == "" && c.VariantsFile == "" {
		return &mtm.ConfigError{Missing: []string{"VARIANTS_SPREADSHEET_ID"}, Reason: "or VARIANTS_FILE"}
	}
	return nil
}

// GeminiConfig configures day image generation.
type GeminiConfig struct {
	APIKey           string        `koanf:"api_key" prop:"GEMINI_API_KEY" validate:"required"`
	Model            string        `koanf:"model" prop:"GEMINI_IMAGE_MODEL_ID" validate:"required"`
	BaseImageFileID  string        `koanf:"base_image_file_id" prop:"GEMINI_BASE_IMAGE_FILE_ID" validate:"required"`
	ImageFolderID    string        `koanf:"image_folder_id" prop:"DEFAULT_IMAGE_FOLDER_ID" validate:"required"`
	Timeout          time.Duration `koanf:"timeout" prop:"GEMINI_TIMEOUT"`
	MinInterval      time.Duration `koanf:"min_interval" prop:"GEMINI_MIN_INTERVAL"`
	BreakerThreshold uint32        `koanf:"breaker_threshold" prop:"GEMINI_BREAKER_THRESHOLD"`
	GenerateMissing  bool          `koanf:"generate_missing" prop:"GENERATE_MISSING_THUMBNAILS"`
}

// Validate reports every missing Gemini property.
func (c GeminiConfig) Validate() error {
	return validation.Config(c)
}

// FacebookConfig configures page posting.
type FacebookConfig struct {
	PageID          string  `koanf:"page_id" prop:"FB_PAGE_ID" validate:"required"`
	AccessToken     string  `koanf:"access_token" prop:"FB_PAGE_ACCESS_TOKEN" validate:"required"`
	GraphAPIVersion string  `koanf:"graph_api_version" prop:"FB_GRAPH_API_VERSION" validate:"required"`
	TimeoutSeconds  float64 `koanf:"timeout_seconds" prop:"FACEBOOK_TIMEOUT" validate:"required,gt=0"`
	AppID           string  `koanf:"app_id" prop:"FB_APP_ID"`
	AppSecret       string  `koanf:"app_secret" prop:"FB_APP_SECRET"`
}

// Validate reports every missing Facebook property.
func (c FacebookConfig) Validate() error {
	return validation.Config(c)
}

// Timeout returns the HTTP timeout for Graph API calls.
func (c FacebookConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// EmailConfig configures outcome notifications.
type EmailConfig struct {
	Provider    string `koanf:"provider" prop:"EMAIL_PROVIDER" validate:"oneof=auto gmail brevo mock"`
	To          string `koanf:"to" prop:"NOTIFY_EMAIL"`
	From        string `koanf:"from" prop:"EMAIL_FROM"`
	FromName    string `koanf:"from_name" prop:"EMAIL_FROM_NAME"`
	BrevoAPIKey string `koanf:"brevo_api_key" prop:"BREVO_API_KEY"`
}

// CronConfig holds timer schedules in standard five-field cron syntax. Empty disables a timer.
type CronConfig struct {
	Enabled  bool   `koanf:"enabled" prop:"CRON_ENABLED"`
	Backup   string `koanf:"backup" prop:"CRON_BACKUP"`
	Schedule string `koanf:"schedule" prop:"CRON_SCHEDULE"`
	Social   string `koanf:"social" prop:"CRON_SOCIAL"`
	Image    string `koanf:"image" prop:"CRON_IMAGE"`
}

// LogConfig controls the slog handler and optional rotated file.
type LogConfig struct {
	Level      string `koanf:"level" prop:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	File       string `koanf:"file" prop:"LOG_FILE"`
	MaxSizeMB  int    `koanf:"max_size_mb" prop:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `koanf:"max_backups" prop:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `koanf:"max_age_days" prop:"LOG_MAX_AGE_DAYS"`
}

func defaultConfig() *Config {
	return &Config{
		Timezone: "America/Santo_Domingo",
		Epoch:    mtm.FormatDay(mtm.DefaultEpoch),
		Server: ServerConfig{
			Port:      "8080",
			RateLimit: 60,
		},
		Storage: StorageConfig{
			Backend: "auto",
		},
		YouTube: YouTubeConfig{
			BackupMode:       "uploads",
			UploadsWindow:    5,
			SearchPages:      1,
			BindAttempts:     3,
			BindInitialDelay: time.Second,
		},
		Gemini: GeminiConfig{
			Model:            "gemini-2.5-flash-image",
			Timeout:          2 * time.Minute,
			MinInterval:      time.Second,
			BreakerThreshold: 3,
		},
		Email: EmailConfig{
			Provider: "auto",
			FromName: "MTM automation",
		},
		Cron: CronConfig{
			Backup:   "30 21 * * *",
			Schedule: "0 12 * * *",
			Social:   "45 21 * * *",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load layers defaults, the config file and environment variables, then validates the core settings.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command depends on.
// Pipeline specific sections are checked when the pipeline is built.
func (c *Config) Validate() error {
	return validation.Config(struct {
		Timezone string `prop:"DEFAULT_TZ" validate:"required,timezone"`
		Epoch    string `prop:"PROGRAM_EPOCH" validate:"required,ymd"`
		Server   ServerConfig
		Storage  StorageConfig
		YouTube  YouTubeConfig
		Email    EmailConfig
		Log      LogConfig
	}{c.Timezone, c.Epoch, c.Server, c.Storage, c.YouTube, c.Email, c.Log})
}

// Program returns the day calculator for the configured epoch.
func (c *Config) Program() (mtm.Program, error) {
	epoch, err := mtm.ParseDay(c.Epoch)
	if err != nil {
		return mtm.Program{}, err
	}
	return mtm.New(epoch), nil
}

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &mtm.ConfigError{Reason: fmt.Sprintf("DEFAULT_TZ %q: %v", c.Timezone, err)}
	}
	return loc, nil
}

func findConfigFile() string {
	if path := os.Getenv(PathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envKeys maps the legacy property names to config keys.
var envKeys = map[string]string{
	"DEFAULT_TZ":    "timezone",
	"PROGRAM_EPOCH": "epoch",

	"PORT":                  "server.port",
	"SCRIPT_WEB_TOKEN":      "server.web_token",
	"RATE_LIMIT_PER_MINUTE": "server.rate_limit",

	"STORAGE_BACKEND": "storage.backend",
	"STORAGE_BUCKET":  "storage.bucket",
	"LOCAL_STORAGE":   "storage.local_path",
	"BADGER_PATH":     "storage.badger_path",

	"GOOGLE_CREDENTIALS_JSON": "google.credentials_json",
	"YT_CLIENT_ID":            "google.client_id",
	"YT_CLIENT_SECRET":        "google.client_secret",
	"YT_REFRESH_TOKEN":        "google.refresh_token",

	"PERSISTENT_STREAM_ID":   "youtube.persistent_stream_id",
	"GENERAL_YT_PLAYLIST_ID": "youtube.general_playlist_id",
	"HALF_MTM_PLAYLIST_ID":   "youtube.half_playlist_id",
	"FULL_MTM_PLAYLIST_ID":   "youtube.full_playlist_id",
	"BACKUP_YT_PLAYLIST_ID":  "youtube.backup_playlist_id",
	"BACKUP_SEARCH_MODE":     "youtube.backup_mode",
	"BACKUP_UPLOADS_WINDOW":  "youtube.uploads_window",
	"BACKUP_SEARCH_PAGES":    "youtube.search_pages",
	"BIND_MAX_ATTEMPTS":      "youtube.bind_attempts",
	"BIND_INITIAL_DELAY":     "youtube.bind_initial_delay",

	"THUMB_FOLDER_ID": "drive.thumb_folder_id",
	"LOCAL_DRIVE_DIR": "drive.local_root",

	"VARIANTS_SPREADSHEET_ID": "prompt.spreadsheet_id",
	"VARIANTS_FILE":           "prompt.variants_file",

	"GEMINI_API_KEY":              "gemini.api_key",
	"GEMINI_IMAGE_MODEL_ID":       "gemini.model",
	"GEMINI_BASE_IMAGE_FILE_ID":   "gemini.base_image_file_id",
	"DEFAULT_IMAGE_FOLDER_ID":     "gemini.image_folder_id",
	"GEMINI_TIMEOUT":              "gemini.timeout",
	"GEMINI_MIN_INTERVAL":         "gemini.min_interval",
	"GEMINI_BREAKER_THRESHOLD":    "gemini.breaker_threshold",
	"GENERATE_MISSING_THUMBNAILS": "gemini.generate_missing",

	"FB_PAGE_ID":           "facebook.page_id",
	"FB_PAGE_ACCESS_TOKEN": "facebook.access_token",
	"FB_GRAPH_API_VERSION": "facebook.graph_api_version",
	"FACEBOOK_TIMEOUT":     "facebook.timeout_seconds",
	"FB_APP_ID":            "facebook.app_id",
	"FB_APP_SECRET":        "facebook.app_secret",

	"EMAIL_PROVIDER":  "email.provider",
	"NOTIFY_EMAIL":    "email.to",
	"EMAIL_FROM":      "email.from",
	"EMAIL_FROM_NAME": "email.from_name",
	"BREVO_API_KEY":   "email.brevo_api_key",

	"CRON_ENABLED":  "cron.enabled",
	"CRON_BACKUP":   "cron.backup",
	"CRON_SCHEDULE": "cron.schedule",
	"CRON_SOCIAL":   "cron.social",
	"CRON_IMAGE":    "cron.image",

	"LOG_LEVEL":        "log.level",
	"LOG_FILE":         "log.file",
	"LOG_MAX_SIZE_MB":  "log.max_size_mb",
	"LOG_MAX_BACKUPS":  "log.max_backups",
	"LOG_MAX_AGE_DAYS": "log.max_age_days",
}

// envKey maps an environment variable to a config key. Unknown variables are ignored.
// MTM_SECTION__FIELD is accepted for any key, e.g. MTM_GEMINI__TIMEOUT=90s.
func envKey(name string) string {
	if key, ok := envKeys[name]; ok {
		return key
	}
	if rest, ok := strings.CutPrefix(name, "MTM_"); ok && rest != "" {
		return strings.ReplaceAll(strings.ToLower(rest), "__", ".")
	}
	return ""
}
