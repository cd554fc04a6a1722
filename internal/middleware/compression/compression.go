// Package compression implements the response compression negotiation
// called out in spec.md §4.G. The teacher's own middleware/compression
// ships only its public options surface in this pack (options.go);
// negotiation and the actual encoder wiring here are authored fresh
// against that same config shape, backed by the compression libraries
// the wider example pack depends on: compress/gzip and compress/flate
// from the standard library plus github.com/andybalholm/brotli for the
// one format the standard library doesn't provide.
package compression

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/scriptedge/scriptedge/internal/logging"
)

type config struct {
	gzipLevel           int
	brotliLevel         int
	enableGzip          bool
	enableBrotli        bool
	enableDeflate       bool
	excludePaths        map[string]bool
	excludeContentTypes map[string]bool
	logger              *logging.Config
}

func defaultConfig() *config {
	return &config{
		gzipLevel:           gzip.DefaultCompression,
		brotliLevel:         4,
		enableGzip:          true,
		enableBrotli:        true,
		enableDeflate:       true,
		excludePaths:        map[string]bool{},
		excludeContentTypes: map[string]bool{"image/jpeg": true, "image/png": true, "image/gif": true},
	}
}

// Option configures New.
type Option func(*config)

func WithGzipLevel(level int) Option   { return func(c *config) { c.gzipLevel = level } }
func WithBrotliLevel(level int) Option { return func(c *config) { c.brotliLevel = clamp(level, 0, 11) } }
func WithGzipDisabled() Option         { return func(c *config) { c.enableGzip = false } }
func WithBrotliDisabled() Option       { return func(c *config) { c.enableBrotli = false } }
func WithDeflateDisabled() Option      { return func(c *config) { c.enableDeflate = false } }
func WithLogger(l *logging.Config) Option { return func(c *config) { c.logger = l } }

func WithExcludePaths(paths ...string) Option {
	return func(c *config) {
		for _, p := range paths {
			c.excludePaths[p] = true
		}
	}
}

func WithExcludeContentTypes(types ...string) Option {
	return func(c *config) {
		for _, t := range types {
			c.excludeContentTypes[t] = true
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// New returns a middleware that compresses the response body using the
// best encoding both the client (Accept-Encoding) and this config
// support, skipping excluded paths and content types.
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.excludePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			encoding := negotiate(r.Header.Get("Accept-Encoding"), cfg)
			if encoding == "" {
				next.ServeHTTP(w, r)
				return
			}

			cw := newCompressingWriter(w, encoding, cfg)
			defer cw.Close()
			next.ServeHTTP(cw, r)
		})
	}
}

type qEncoding struct {
	name string
	q    float64
}

// negotiate picks the client's most-preferred encoding this config
// actually supports, per RFC 7231 §5.3.4 q-value ordering.
func negotiate(header string, cfg *config) string {
	if header == "" {
		return ""
	}

	var candidates []qEncoding
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		q := 1.0
		if i := strings.Index(part, ";"); i >= 0 {
			name = strings.TrimSpace(part[:i])
			params := part[i+1:]
			if j := strings.Index(params, "q="); j >= 0 {
				if v, err := strconv.ParseFloat(strings.TrimSpace(params[j+2:]), 64); err == nil {
					q = v
				}
			}
		}
		if q <= 0 {
			continue
		}
		candidates = append(candidates, qEncoding{strings.ToLower(name), q})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].q > candidates[j].q })

	for _, c := range candidates {
		switch c.name {
		case "br":
			if cfg.enableBrotli {
				return "br"
			}
		case "gzip":
			if cfg.enableGzip {
				return "gzip"
			}
		case "deflate":
			if cfg.enableDeflate {
				return "deflate"
			}
		}
	}
	return ""
}

// compressingWriter wraps http.ResponseWriter, deferring the choice of
// whether to actually compress until the first WriteHeader or Write,
// since the Content-Type the handler sets just before that call
// determines whether this response is excluded.
type compressingWriter struct {
	http.ResponseWriter
	cfg         *config
	encoding    string
	enc         io.WriteCloser
	wroteHeader bool
	skip        bool
}

func newCompressingWriter(w http.ResponseWriter, encoding string, cfg *config) *compressingWriter {
	return &compressingWriter{ResponseWriter: w, cfg: cfg, encoding: encoding}
}

func (c *compressingWriter) WriteHeader(status int) {
	c.prepare()
	c.ResponseWriter.WriteHeader(status)
}

func (c *compressingWriter) Write(b []byte) (int, error) {
	c.prepare()
	if c.skip {
		return c.ResponseWriter.Write(b)
	}
	return c.enc.Write(b)
}

func (c *compressingWriter) prepare() {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true

	ct := c.Header().Get("Content-Type")
	if base, _, err := parseContentType(ct); err == nil && c.cfg.excludeContentTypes[base] {
		c.skip = true
		return
	}
	if ext := path.Ext(c.Header().Get("Content-Disposition")); c.cfg.excludeContentTypes[ext] {
		c.skip = true
		return
	}

	c.Header().Set("Content-Encoding", c.encoding)
	c.Header().Del("Content-Length")

	switch c.encoding {
	case "gzip":
		gw, err := gzip.NewWriterLevel(c.ResponseWriter, c.cfg.gzipLevel)
		if err != nil {
			c.logFailure(err)
			c.skip = true
			return
		}
		c.enc = gw
	case "deflate":
		fw, err := flate.NewWriter(c.ResponseWriter, flate.DefaultCompression)
		if err != nil {
			c.logFailure(err)
			c.skip = true
			return
		}
		c.enc = fw
	case "br":
		c.enc = brotli.NewWriterLevel(c.ResponseWriter, c.cfg.brotliLevel)
	default:
		c.skip = true
	}
}

func (c *compressingWriter) Close() error {
	if c.enc != nil {
		return c.enc.Close()
	}
	return nil
}

func (c *compressingWriter) logFailure(err error) {
	if c.cfg.logger != nil {
		c.cfg.logger.LogError(err, "compression: failed to initialize encoder", "encoding", c.encoding)
	}
}

func parseContentType(v string) (string, map[string]string, error) {
	if i := strings.Index(v, ";"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v), nil, nil
}
