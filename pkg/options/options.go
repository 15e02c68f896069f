// Package options holds the option-group contract shared by every config section.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join builds a flag prefix from its parts, e.g. Join("store", "qdrant") == "store.qdrant.".
// An empty result stays empty.
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions is implemented by every option group mounted on the server command.
type IOptions interface {
	// Validate reports every invalid field at once.
	Validate() []error

	// AddFlags registers the group's flags under the given prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
