package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/secret"
)

// RemoteScheme marks a BACKUPDIRECTORY that lives in an R2 bucket.
const RemoteScheme = "r2"

// ErrUsage is returned by Load when a positional argument is missing.
var ErrUsage = errors.New("missing arguments")

// Config holds the application configuration
type Config struct {
	// Positional arguments
	Password  string // the password, or the SSM parameter name when PasswordSource is "ssm"
	Directory string // local path or r2://bucket/prefix

	// PasswordSource is "argument" (default), "prompt" or "ssm"
	PasswordSource string

	// Run behavior
	StrictExit     bool
	VerifyArchives bool

	// Revision selection (0 disables)
	MaxRevisions int
	MaxAgeDays   int

	// R2 settings, only needed for r2:// directories
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	DownloadDir       string

	// Notification settings
	WebhookURL      string
	NotifyOnSuccess bool
	NotifyOnFailure bool
}

// Usage is printed when Load returns ErrUsage.
func Usage(program string) string {
	return fmt.Sprintf("usage:  %s PASSWORD BACKUPDIRECTORY", program)
}

// Load builds the configuration from the positional arguments (without the
// program name) and the environment.
func Load(args []string) (*Config, error) {
	if len(args) < 2 {
		return nil, ErrUsage
	}

	cfg := &Config{
		Password:  args[0],
		Directory: args[1],
	}

	cfg.PasswordSource = strings.ToLower(getInput("password_source"))

	cfg.StrictExit = getInputBool("strict_exit", false)
	cfg.VerifyArchives = getInputBool("verify_archives", false)

	cfg.MaxRevisions = getInputInt("max_revisions", 0)
	cfg.MaxAgeDays = getInputInt("max_age_days", 0)

	cfg.R2AccountID = getInput("r2_account_id")
	cfg.R2AccessKeyID = getInput("r2_access_key_id")
	cfg.R2SecretAccessKey = getInput("r2_secret_access_key")
	cfg.DownloadDir = getInput("download_dir")

	cfg.WebhookURL = getInput("webhook_url")
	cfg.NotifyOnSuccess = getInputBool("notify_on_success", true)
	cfg.NotifyOnFailure = getInputBool("notify_on_failure", true)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Directory == "" {
		return apperrors.NewConfigError("backup_directory", "must not be empty")
	}
	if !secret.ValidSource(c.PasswordSource) {
		return apperrors.NewConfigError("password_source", "must be one of argument, prompt, ssm")
	}
	if c.MaxRevisions < 0 {
		return apperrors.NewConfigError("max_revisions", "must be a non-negative integer")
	}
	if c.MaxAgeDays < 0 {
		return apperrors.NewConfigError("max_age_days", "must be a non-negative integer")
	}

	if c.IsRemote() {
		if _, _, err := c.RemoteLocation(); err != nil {
			return err
		}
		if c.R2AccountID == "" {
			return apperrors.NewConfigError("r2_account_id", "is required for r2:// directories")
		}
		if c.R2AccessKeyID == "" {
			return apperrors.NewConfigError("r2_access_key_id", "is required for r2:// directories")
		}
		if c.R2SecretAccessKey == "" {
			return apperrors.NewConfigError("r2_secret_access_key", "is required for r2:// directories")
		}
	}

	return nil
}

func (c *Config) IsRemote() bool {
	return strings.HasPrefix(c.Directory, RemoteScheme+"://")
}

// RemoteLocation splits an r2://bucket/prefix directory. The prefix is
// returned without a leading slash and, when non-empty, with a trailing one.
func (c *Config) RemoteLocation() (bucket, prefix string, err error) {
	u, err := url.Parse(c.Directory)
	if err != nil {
		return "", "", apperrors.NewConfigError("backup_directory", fmt.Sprintf("invalid r2 url: %v", err))
	}
	if u.Scheme != RemoteScheme || u.Host == "" {
		return "", "", apperrors.NewConfigError("backup_directory", "r2 url must look like r2://bucket/prefix")
	}

	prefix = strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return u.Host, prefix, nil
}

func (c *Config) HasRevisionLimits() bool {
	return c.MaxRevisions > 0 || c.MaxAgeDays > 0
}

func getInput(name string) string {
	// First try regular env var (for local development)
	envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if val := os.Getenv(envName); val != "" {
		return strings.TrimSpace(val)
	}
	// Fall back to INPUT_ prefixed (GitHub Actions convention)
	return strings.TrimSpace(os.Getenv("INPUT_" + envName))
}

func getInputInt(name string, defaultVal int) int {
	val := getInput(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getInputBool(name string, defaultVal bool) bool {
	val := strings.ToLower(getInput(name))
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "yes" || val == "1"
}
