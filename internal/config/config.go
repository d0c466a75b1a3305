package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

type Config struct {
	// HTTPListenPort is the OpenStack-facing API server listen port.
	HTTPListenPort        int `validate:"required"`
	MetricsHTTPListenPort int
	PprofPort             int

	Log       Log
	SoftLayer softlayer.Config
	Volume    Volume
}

type Log struct {
	Level string
}

type Volume struct {
	// NamePrefix is prepended to every ordered disk description. The
	// provider rejects orders with an empty description, so the prefix
	// alone is used when the request carries no display name.
	NamePrefix string

	// DefaultZone is the datacenter used when neither the request nor the
	// storage class implies one.
	DefaultZone string

	// Types is the raw storage class catalog JSON. Left empty, the
	// built-in catalog applies.
	Types string

	// RetryCount and WaitTime bound the order fulfillment poll: at most
	// RetryCount+1 attempts with WaitTime*attempt linear backoff.
	RetryCount int
	WaitTime   time.Duration
}

// Load reads configuration from an optional yaml file plus environment
// variables. Environment always wins over the file.
func Load(configPath string) (Config, error) {
	v := viper.New()

	_ = v.BindEnv("httplistenport", "HTTP_LISTEN_PORT")
	_ = v.BindEnv("metricshttplistenport", "METRICS_HTTP_LISTEN_PORT")
	_ = v.BindEnv("pprofport", "PPROF_PORT")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("softlayer.endpoint", "SL_ENDPOINT")
	_ = v.BindEnv("softlayer.username", "SL_USERNAME")
	_ = v.BindEnv("softlayer.apikey", "SL_API_KEY")
	_ = v.BindEnv("volume.nameprefix", "VOLUME_NAME_PREFIX")
	_ = v.BindEnv("volume.defaultzone", "VOLUME_DEFAULT_AVAILABILITY_ZONE")
	_ = v.BindEnv("volume.types", "VOLUME_TYPES")
	_ = v.BindEnv("volume.retrycount", "VOLUME_RETRY_COUNT")
	_ = v.BindEnv("volume.waittime", "VOLUME_WAIT_TIME")

	v.SetDefault("httplistenport", 8080)
	v.SetDefault("metricshttplistenport", 6060)
	v.SetDefault("log.level", "INFO")
	v.SetDefault("softlayer.endpoint", softlayer.PublicEndpoint)
	v.SetDefault("volume.nameprefix", "jumpgate-")
	v.SetDefault("volume.defaultzone", "dal05")
	v.SetDefault("volume.retrycount", 3)
	v.SetDefault("volume.waittime", 2*time.Second)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.SoftLayer.Valid() {
		return Config{}, fmt.Errorf("softlayer credentials missing: set SL_USERNAME and SL_API_KEY")
	}

	return cfg, nil
}
