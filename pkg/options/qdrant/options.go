// Package qdrantopts provides options for the Qdrant REST client.
package qdrantopts

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Qdrant connection configuration.
type Options struct {
	// URL is the Qdrant REST endpoint.
	URL string `json:"url" mapstructure:"url"`

	// APIKey is sent as the api-key header when set.
	APIKey string `json:"-" mapstructure:"api-key"`

	// Timeout bounds every REST call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		URL:     "http://localhost:6333",
		Timeout: 10 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "qdrant."
	fs.StringVar(&o.URL, p+"url", o.URL, "Qdrant REST endpoint.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Qdrant API key (optional).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Qdrant request timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if u, err := url.Parse(o.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("qdrant url %q is invalid", o.URL))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("qdrant timeout must be positive"))
	}
	return errs
}
