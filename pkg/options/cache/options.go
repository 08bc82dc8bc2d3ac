// Package cache provides query cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/anchora/pkg/options"
	redisopts "github.com/kart-io/anchora/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the Redis-backed answer cache.
type Options struct {
	// Enabled toggles caching of generated answers.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL is how long cached answers stay valid.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix namespaces the cache keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis holds the connection configuration.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions creates default cache options.
func NewOptions() *Options {
	return &Options{
		Enabled:   false,
		TTL:       1 * time.Hour,
		KeyPrefix: "anchora:query:",
		Redis:     redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"cache.enabled", o.Enabled, "Enable the Redis answer cache.")
	fs.DurationVar(&o.TTL, options.Join(prefixes...)+"cache.ttl", o.TTL, "Answer cache TTL.")
	fs.StringVar(&o.KeyPrefix, options.Join(prefixes...)+"cache.key-prefix", o.KeyPrefix, "Answer cache key prefix.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, prefixes...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Enabled {
		if o.TTL <= 0 {
			errs = append(errs, fmt.Errorf("cache ttl must be positive"))
		}
		if o.Redis != nil {
			errs = append(errs, o.Redis.Validate()...)
		}
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
