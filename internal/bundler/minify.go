package bundler

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

// Minify compresses a bundle expression for storage in the build cache.
// Bundle's own output is left unminified and human-diffable; minifying
// is a separate, optional step the build cache applies before writing
// the .mjs artifact, grounded on the project templates' general
// preference (seen across the example pack) for running a release-sized
// asset through a dedicated minifier rather than hand-rolling whitespace
// stripping.
func Minify(src string) (string, error) {
	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)
	return m.String("application/javascript", src)
}
