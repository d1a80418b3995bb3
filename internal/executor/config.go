package executor

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
)

// Mode selects how unexpected errors are reported.
type Mode string

const (
	// ModeProduction replaces unexpected error messages with a generic one.
	ModeProduction Mode = "production"
	// ModeDevelopment keeps messages and adds exception details.
	ModeDevelopment Mode = "development"
)

// Config holds execution settings.
type Config struct {
	Mode Mode `validate:"oneof=production development"`

	// MaxConcurrency bounds the number of resolvers running at once.
	// 0 means unlimited.
	MaxConcurrency int `validate:"gte=0"`

	// ForceSerial executes every selection set field by field.
	ForceSerial bool

	// UnexpectedErrorMessage replaces masked messages in production mode.
	UnexpectedErrorMessage string `validate:"required"`

	// ErrorTimestamps adds extensions.timestamp to every error.
	ErrorTimestamps bool

	// TracingExtension adds per-resolver timings under extensions.tracing.
	TracingExtension bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                   ModeProduction,
		UnexpectedErrorMessage: "Unexpected Execution Error",
	}
}

var validate = validator.New()

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid executor config: %w", err)
	}
	return nil
}

type options struct {
	config       Config
	logger       logr.Logger
	middleware   []Middleware
	errorFilters []ErrorFilter
	services     ServiceProvider
	now          func() time.Time
}

// Option configures an Executor.
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option { return func(o *options) { o.config = cfg } }

func WithMode(m Mode) Option { return func(o *options) { o.config.Mode = m } }

func WithMaxConcurrency(n int) Option { return func(o *options) { o.config.MaxConcurrency = n } }

func WithForceSerial() Option { return func(o *options) { o.config.ForceSerial = true } }

func WithErrorTimestamps() Option { return func(o *options) { o.config.ErrorTimestamps = true } }

func WithTracingExtension() Option { return func(o *options) { o.config.TracingExtension = true } }

func WithLogger(l logr.Logger) Option { return func(o *options) { o.logger = l } }

// WithMiddleware appends field middleware. The first registered middleware
// is the outermost layer.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

func WithErrorFilter(f ...ErrorFilter) Option {
	return func(o *options) { o.errorFilters = append(o.errorFilters, f...) }
}

// WithServices sets the default service provider for requests that do not
// carry their own.
func WithServices(sp ServiceProvider) Option { return func(o *options) { o.services = sp } }

// WithClock overrides time.Now for timestamps and tracing.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }
