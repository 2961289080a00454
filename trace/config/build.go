package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Pro7ech/hetrace/trace"
	"github.com/Pro7ech/hetrace/trace/heracles"
	"github.com/Pro7ech/hetrace/trace/redislog"
	"github.com/Pro7ech/hetrace/trace/spans"
)

// Options are the runtime dependencies of [Build] that cannot be read
// from a configuration file.
type Options struct {
	Context context.Context
	// Heracles describes the host parameters, required by the heracles backend.
	Heracles *heracles.Parameters
	// Tracer creates the spans of the spans backend, the global
	// OpenTelemetry tracer by default.
	Tracer oteltrace.Tracer
	// Registerer registers the session metrics,
	// prometheus.DefaultRegisterer by default.
	Registerer  prometheus.Registerer
	Classifiers []trace.Classifier
	// LogOutput receives the session logs, os.Stderr by default.
	LogOutput io.Writer
	// Stdout receives the "-" outputs, os.Stdout by default.
	Stdout io.Writer
}

// Handle is a tracing session built from a [Config], together with the
// resources it owns.
type Handle struct {
	Tracer trace.Tracer
	// Session is nil if tracing is disabled or only the null backend is
	// configured.
	Session  *trace.Session
	Heracles *heracles.Backend
	Spans    *spans.Backend
	Metrics  *trace.Metrics

	cfg     Config
	closers []io.Closer
}

// Build creates the session described by cfg.
func Build(cfg Config, opts Options) (h *Handle, err error) {

	if err = cfg.Validate(); err != nil {
		return
	}

	if opts.Context == nil {
		opts.Context = context.Background()
	}

	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	handle := &Handle{Tracer: trace.Null, cfg: cfg}
	h = handle

	if !trace.Enabled {
		return
	}

	defer func() {
		if err != nil {
			handle.release()
			h = nil
		}
	}()

	var backends []trace.Backend

	for _, k := range cfg.Backends {

		var b trace.Backend

		switch k {
		case BackendText:
			var w io.Writer
			if w, err = h.open(cfg.Text, cfg.Redis, opts); err != nil {
				return
			}
			b = trace.NewText(w)

		case BackendMLIR:
			var w io.Writer
			if w, err = h.open(cfg.MLIR, cfg.Redis, opts); err != nil {
				return
			}
			b = trace.NewMLIR(w, cfg.MLIR.Namespace)

		case BackendHeracles:
			if opts.Heracles == nil {
				return nil, fmt.Errorf("config: heracles backend without host parameters")
			}
			if h.Heracles, err = heracles.NewBackend(*opts.Heracles); err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
			b = h.Heracles

		case BackendSpans:
			tracer := opts.Tracer
			if tracer == nil {
				tracer = otel.Tracer("github.com/Pro7ech/hetrace")
			}
			h.Spans = spans.New(tracer, spans.WithContext(opts.Context))
			b = h.Spans

		case BackendNull:
			continue

		default:
			return nil, fmt.Errorf("config: invalid backend %s", k)
		}

		backends = append(backends, b)
	}

	if len(backends) == 0 {
		return
	}

	backend := backends[0]
	if len(backends) > 1 {
		backend = trace.Tee(backends...)
	}

	var logger zerolog.Logger
	if logger, err = newLogger(cfg.Log, opts.LogOutput); err != nil {
		return
	}

	sopts := []trace.Option{
		trace.WithIdentityPolicy(cfg.Identity),
		trace.WithTruncate(cfg.Truncate),
		trace.WithStrict(cfg.Strict),
		trace.WithLogger(logger),
	}

	for _, c := range opts.Classifiers {
		sopts = append(sopts, trace.WithClassifier(c))
	}

	if cfg.Metrics {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		h.Metrics = trace.NewMetrics(reg)
		sopts = append(sopts, trace.WithMetrics(h.Metrics))
	}

	h.Session = trace.NewSession(backend, sopts...)
	h.Tracer = h.Session

	logger.Info().
		Stringer("identity", cfg.Identity).
		Int("backends", len(backends)).
		Msg("tracing session started")

	return
}

// Close writes the configured HERACLES artifacts and releases the files
// and connections owned by h.
func (h *Handle) Close() (err error) {

	var errs []error

	if h.Heracles != nil {
		if h.cfg.Heracles.Binary {
			errs = append(errs, h.Heracles.SaveBinary(h.cfg.Heracles.Base))
		}
		if h.cfg.Heracles.JSON {
			errs = append(errs, h.Heracles.SaveJSON(h.cfg.Heracles.Base))
		}
	}

	errs = append(errs, h.release())

	return errors.Join(errs...)
}

func (h *Handle) release() (err error) {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i].Close())
	}
	h.closers = nil
	return errors.Join(errs...)
}

func (h *Handle) open(sink Sink, rc RedisConfig, opts Options) (w io.Writer, err error) {

	switch sink.Output {
	case "", Stdout:
		return opts.Stdout, nil

	case Redis:
		var rw *redislog.Writer
		rw, err = redislog.Dial(opts.Context, &redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		}, sink.Key)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		h.closers = append(h.closers, rw)
		return rw, nil
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if sink.Append {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	var f *os.File
	if f, err = os.OpenFile(sink.Output, flag, 0o644); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	h.closers = append(h.closers, f)

	return f, nil
}

func newLogger(cfg LogConfig, out io.Writer) (logger zerolog.Logger, err error) {

	level := zerolog.WarnLevel
	if cfg.Level != "" {
		if level, err = zerolog.ParseLevel(cfg.Level); err != nil {
			return logger, fmt.Errorf("config: %w", err)
		}
	}

	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
