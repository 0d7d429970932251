package conf

import (
	"fmt"

	"github.com/sprouterdb/sprouter/errors"
)

const (
	DefaultPageCacheFrames = 256
	MinPageCacheFrames     = 16
)

type Config struct {
	DataDir               string `json:"data_dir,omitempty"`
	InMemory              bool   `json:"in_memory,omitempty"`
	PageCacheFrames       int    `json:"page_cache_frames,omitempty"`
	EnableMetrics         bool   `json:"enable_metrics,omitempty"`
	MetricsHTTPListenAddr string `json:"metrics_http_listen_addr,omitempty"`
	LogFormat             string `json:"log_format,omitempty"`
	LogLevel              string `json:"log_level,omitempty"`
	LogFile               string `json:"log_file,omitempty"`
}

func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return errors.NewInvalidConfigurationError("DataDir must be specified unless InMemory is set")
	}
	if c.PageCacheFrames != 0 && c.PageCacheFrames < MinPageCacheFrames {
		return errors.NewInvalidConfigurationError(fmt.Sprintf("PageCacheFrames must be >= %d", MinPageCacheFrames))
	}
	if c.EnableMetrics && c.MetricsHTTPListenAddr == "" {
		return errors.NewInvalidConfigurationError("MetricsHTTPListenAddr must be specified when EnableMetrics is set")
	}
	return nil
}

func NewDefaultConfig() Config {
	return Config{
		InMemory:        true,
		PageCacheFrames: DefaultPageCacheFrames,
	}
}
