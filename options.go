package annkit

import (
	"log/slog"

	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resources        *resource.Controller
	compression      persistence.CompressionType
	heuristic        bool
}

// Option configures an Index.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := annkit.NewJSONLogger(slog.LevelInfo)
//	ix, _ := annkit.New[float32]("HNSW", annkit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceController bounds build workers and IO bandwidth by rc,
// which may be shared between indexes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithCompression block-compresses serialized indexes. Compressed
// indexes cannot be memory-mapped and load onto the heap instead.
func WithCompression(c persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithHNSWHeuristic selects heuristic (true, default) or simple
// (nearest-M) neighbor selection for HNSW builds.
func WithHNSWHeuristic(enabled bool) Option {
	return func(o *options) {
		o.heuristic = enabled
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		heuristic:        true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
