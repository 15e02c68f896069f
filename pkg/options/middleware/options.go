// Package middleware provides middleware configuration options.
package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 聚合 HTTP 中间件配置，按 recovery、request-id、logger、body-limit 顺序生效。
type Options struct {
	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	BodyLimit *BodyLimitOptions `json:"body-limit" mapstructure:"body-limit"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		Recovery:  NewRecoveryOptions(),
		RequestID: NewRequestIDOptions(),
		Logger:    NewLoggerOptions(),
		BodyLimit: NewBodyLimitOptions(),
	}
}

// AddFlags adds flags for all middleware options.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.Recovery.AddFlags(fs, prefixes...)
	o.RequestID.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
	o.BodyLimit.AddFlags(fs, prefixes...)
}

// Validate validates all middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.RequestID.Validate()...)
	errs = append(errs, o.BodyLimit.Validate()...)
	return errs
}

// RecoveryOptions defines recovery middleware options.
type RecoveryOptions struct {
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions creates default recovery middleware options.
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{}
}

// AddFlags adds flags for recovery options.
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"middleware.recovery.enable-stack-trace", o.EnableStackTrace, "Log the stack trace of recovered panics.")
}

// RequestIDOptions defines request ID middleware options.
type RequestIDOptions struct {
	Header string `json:"header" mapstructure:"header"`
}

// NewRequestIDOptions creates default request ID middleware options.
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{Header: "X-Request-ID"}
}

// AddFlags adds flags for request ID options.
func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Header, options.Join(prefixes...)+"middleware.request-id.header", o.Header, "Request ID header name.")
}

// Validate validates the request ID options.
func (o *RequestIDOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Header == "" {
		return []error{errors.New("request ID header name is required")}
	}
	return nil
}

// LoggerOptions defines access log middleware options.
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewLoggerOptions creates default logger middleware options.
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{SkipPaths: []string{"/healthz"}}
}

// AddFlags adds flags for logger options.
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.logger.skip-paths", o.SkipPaths, "Paths to skip logging.")
}

// BodyLimitOptions 定义请求体大小限制。
type BodyLimitOptions struct {
	// MaxSize 最大请求体大小（字节），默认 8MB。
	MaxSize int64 `json:"max-size" mapstructure:"max-size"`
}

// NewBodyLimitOptions 创建默认的 BodyLimit 配置。
func NewBodyLimitOptions() *BodyLimitOptions {
	return &BodyLimitOptions{MaxSize: 8 * 1024 * 1024}
}

// AddFlags 添加 BodyLimit 配置的命令行标志。
func (o *BodyLimitOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Int64Var(&o.MaxSize, options.Join(prefixes...)+"middleware.body-limit.max-size", o.MaxSize, "Maximum request body size in bytes.")
}

// Validate 验证 BodyLimit 配置。
func (o *BodyLimitOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.MaxSize <= 0 {
		return []error{errors.New("body-limit: max-size must be greater than 0")}
	}
	return nil
}
