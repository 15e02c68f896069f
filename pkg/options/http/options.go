// Package http provides HTTP server configuration options.
package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kart-io/ragchat/pkg/options"
	"github.com/kart-io/ragchat/pkg/options/middleware"
)

var _ options.IOptions = (*Options)(nil)

// Options contains HTTP server configuration.
type Options struct {
	// Addr is the address to listen on.
	Addr string `json:"addr" mapstructure:"addr"`
	// Mode is the gin mode (debug, release, test).
	Mode string `json:"mode" mapstructure:"mode"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout is the maximum duration before timing out writes of the response.
	// It must exceed the chat timeout so a slow completion can still be written.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	// Swagger 为 true 时在 /swagger/*any 提供 API 文档。
	Swagger bool `json:"swagger" mapstructure:"swagger"`
	// Middleware contains all middleware configuration.
	Middleware *middleware.Options `json:"middleware" mapstructure:"middleware"`
}

// Option is a function that configures Options.
type Option func(*Options)

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Addr:            ":8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Middleware:      middleware.NewOptions(),
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "HTTP server listen address")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode (debug, release, test)")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "HTTP server read timeout")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "HTTP server write timeout")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "HTTP server idle timeout")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
	fs.BoolVar(&o.Swagger, p+"swagger", o.Swagger, "Serve the Swagger UI at /swagger/index.html")

	if o.Middleware == nil {
		o.Middleware = middleware.NewOptions()
	}
	o.Middleware.AddFlags(fs, append(append([]string{}, prefixes...), "http")...)
}

// Validate validates the HTTP options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.write-timeout must be positive"))
	}
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("http.mode must be one of debug, release, test"))
	}
	errs = append(errs, o.Middleware.Validate()...)
	return errs
}

// Complete completes the HTTP options with defaults.
func (o *Options) Complete() error {
	if o.Middleware == nil {
		o.Middleware = middleware.NewOptions()
	}
	return nil
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Options) {
		o.Addr = addr
	}
}

// WithMode sets the gin mode.
func WithMode(mode string) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

// ApplyOptions applies the given options to the Options.
func (o *Options) ApplyOptions(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}
