package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Provider ProviderConfig `mapstructure:"provider" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
}

// ServerConfig contains settings for the worker's own listener, which serves
// the websocket progress endpoint.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// ProviderConfig contains settings for the external avatar-training service.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"        validate:"required,url"`
	APIKey         string        `mapstructure:"api_key"         validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
}

// PipelineConfig contains settings for the avatar-creation job pipeline.
type PipelineConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// QueueSize determines the buffer size for the in-memory job queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// TrainingDelay is how long the pipeline waits after group creation
	// before requesting training. The provider needs time to index the
	// newly created avatar group.
	TrainingDelay time.Duration `mapstructure:"training_delay" validate:"required"`

	// JobTimeout bounds the total wall-clock time of a single job across
	// all pipeline stages.
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"required"`

	// StuckTaskAge defines how long a job can sit in processing state
	// before it is considered stuck and reset for redelivery.
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"required"`

	// StuckTaskCheckInterval defines how often to check for stuck jobs.
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"required"`

	// TempDir is where producer-staged source images live until the
	// pipeline releases them.
	TempDir string `mapstructure:"temp_dir" validate:"required"`
}
