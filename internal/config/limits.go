package config

import "time"

type Limits struct {
	ProviderTimeout time.Duration   `yaml:"provider_timeout" env:"IMAGINATOR_PROVIDER_TIMEOUT" validate:"required,min=1s,max=30m"`
	ExportTimeout   time.Duration   `yaml:"export_timeout" env:"IMAGINATOR_EXPORT_TIMEOUT" validate:"required,min=1s,max=30m"`
	MaxRetries      int             `yaml:"max_retries" env:"IMAGINATOR_MAX_RETRIES" validate:"min=0,max=10"`
	ExportWorkers   int             `yaml:"export_workers" validate:"min=1,max=5"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		ProviderTimeout: 60 * time.Second,
		ExportTimeout:   2 * time.Minute,
		MaxRetries:      3,
		ExportWorkers:   2,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
	}
}
