package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
// Environment variables override file values (see [Config.ApplyEnv]), so the
// scheduled-job deployment can run without a config file at all.
type Config struct {
	Google   GoogleConfig   `toml:"google"`
	Drive    DriveConfig    `toml:"drive"`
	Backup   BackupConfig   `toml:"backup"`
	Email    EmailConfig    `toml:"email"`
	IMAP     IMAPConfig     `toml:"imap"`
	Database DatabaseConfig `toml:"database"`
}

// GoogleConfig contains the OAuth client and the long-lived refresh token.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DriveConfig locates the archive root and the Takeout staging folder.
type DriveConfig struct {
	RootFolderID    string `toml:"root_folder_id"`
	TakeoutFolderID string `toml:"takeout_folder_id"`
}

// BackupConfig contains sync tuning knobs.
type BackupConfig struct {
	Timezone    string `toml:"timezone"`
	PageSize    int    `toml:"page_size"`
	ChunkSizeMB int    `toml:"chunk_size_mb"`
}

// EmailConfig contains SMTP settings for run summaries and reminders.
type EmailConfig struct {
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUser     string `toml:"smtp_user"`
	SMTPPassword string `toml:"smtp_password"`
	To           string `toml:"to"`
}

// Recipients splits the configured recipient list on commas and semicolons.
func (e EmailConfig) Recipients() []string {
	var out []string
	for _, p := range strings.FieldsFunc(e.To, func(r rune) bool { return r == ',' || r == ';' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IMAPConfig contains mailbox settings for the Takeout-ready trigger.
type IMAPConfig struct {
	Host     string `toml:"host"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Mailbox  string `toml:"mailbox"`
}

// DatabaseConfig contains run-log database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified
// path, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded
// example config and environment overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.ApplyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the
// embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values from the environment variables used
// by the scheduled deployment.
func (c *Config) ApplyEnv() {
	envString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	envString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	envString(&c.Google.RefreshToken, "GOOGLE_REFRESH_TOKEN")
	envString(&c.Drive.RootFolderID, "DRIVE_FOLDER_ID")
	envString(&c.Drive.TakeoutFolderID, "TAKEOUT_FOLDER_ID")
	envString(&c.Backup.Timezone, "BACKUP_TIMEZONE")
	envString(&c.Email.SMTPHost, "SMTP_HOST")
	envInt(&c.Email.SMTPPort, "SMTP_PORT")
	envString(&c.Email.SMTPUser, "SMTP_USER")
	envString(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	envString(&c.Email.To, "EMAIL_TO")
	envString(&c.IMAP.Host, "IMAP_HOST")
	envString(&c.IMAP.User, "IMAP_USER")
	envString(&c.IMAP.Password, "IMAP_PASSWORD")
	envString(&c.IMAP.Mailbox, "IMAP_MAILBOX")

	if c.IMAP.User == "" {
		c.IMAP.User = c.Email.SMTPUser
	}
	if c.IMAP.Password == "" {
		c.IMAP.Password = c.Email.SMTPPassword
	}
}

// RequireGoogle validates that OAuth credentials are present. Runs abort
// immediately when they are not.
func (c *Config) RequireGoogle() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RefreshToken == "" {
		return fmt.Errorf("%w: google client_id, client_secret and refresh_token are required", ErrMissingCredentials)
	}
	return nil
}

func envString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
