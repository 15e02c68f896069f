// Package store provides vector store backend selection options.
package store

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragchat/pkg/options"
	chromemopts "github.com/kart-io/ragchat/pkg/options/chromem"
	milvusopts "github.com/kart-io/ragchat/pkg/options/milvus"
	qdrantopts "github.com/kart-io/ragchat/pkg/options/qdrant"
)

var _ options.IOptions = (*Options)(nil)

// Backend names.
const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
	BackendMilvus  = "milvus"
)

// Options 选择向量存储后端并持有各后端配置。
type Options struct {
	Backend string               `json:"backend" mapstructure:"backend"`
	Chromem *chromemopts.Options `json:"chromem" mapstructure:"chromem"`
	Qdrant  *qdrantopts.Options  `json:"qdrant" mapstructure:"qdrant"`
	Milvus  *milvusopts.Options  `json:"milvus" mapstructure:"milvus"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend: BackendChromem,
		Chromem: chromemopts.NewOptions(),
		Qdrant:  qdrantopts.NewOptions(),
		Milvus:  milvusopts.NewOptions(),
	}
}

// AddFlags adds flags for the store and every backend.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, options.Join(prefixes...)+"store.backend", o.Backend, "Vector store backend (chromem, qdrant, milvus).")
	nested := append(append([]string{}, prefixes...), "store")
	o.Chromem.AddFlags(fs, nested...)
	o.Qdrant.AddFlags(fs, nested...)
	o.Milvus.AddFlags(fs, nested...)
}

// Validate validates the selected backend only.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	switch o.Backend {
	case BackendChromem:
		return o.Chromem.Validate()
	case BackendQdrant:
		return o.Qdrant.Validate()
	case BackendMilvus:
		return o.Milvus.Validate()
	default:
		return []error{fmt.Errorf("unknown store backend %q", o.Backend)}
	}
}
