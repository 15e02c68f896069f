// Package chromemopts provides options for the embedded chromem-go store.
package chromemopts

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/ragchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains chromem-go configuration.
type Options struct {
	// Path 为空时使用内存数据库，否则持久化到该目录。
	Path string `json:"path" mapstructure:"path"`

	// Compress 持久化文件是否 gzip 压缩。
	Compress bool `json:"compress" mapstructure:"compress"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "chromem."
	fs.StringVar(&o.Path, p+"path", o.Path, "Persistence directory (empty keeps the store in memory).")
	fs.BoolVar(&o.Compress, p+"compress", o.Compress, "Gzip the persisted files.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	return nil
}
