package patstat

import (
	"io"
	"log/slog"
	"net/http"
)

// Option configures a Client or LegacyClient.
type Option func(*clientOptions)

type clientOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// WithLogger sets the logger used for request tracing.
// If logger is nil, logging is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client built from Config.Timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *clientOptions) {
		opts.httpClient = httpClient
	}
}

func applyOptions(opts []Option) *clientOptions {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
