package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables read by Load,
// e.g. AVATAR_DATABASE_URL maps to database.url.
const envPrefix = "AVATAR"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; environment variables override file values.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers a default for every known key. Registering a default
// is also what lets AutomaticEnv pick up keys that only exist as environment
// variables during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("provider.base_url", "https://api.heygen.com")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.request_timeout", "30s")

	v.SetDefault("pipeline.worker_count", 2)
	v.SetDefault("pipeline.queue_size", 100)
	v.SetDefault("pipeline.training_delay", "20s")
	v.SetDefault("pipeline.job_timeout", "5m")
	v.SetDefault("pipeline.stuck_task_age", "30m")
	v.SetDefault("pipeline.stuck_task_check_interval", "5m")
	v.SetDefault("pipeline.temp_dir", os.TempDir())
}

// validateConfig checks the loaded configuration against the struct
// validation tags and returns a descriptive error for the first problems
// encountered.
func validateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fieldErr := range validationErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
