// Package capture runs a whole capture: it prepares a profile, starts
// Firefox, drives it over Marionette and writes the screenshot or PDF out.
package capture

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/foxshot/env"
	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/firefox"
	"github.com/liuxd6825/foxshot/log"
	"github.com/liuxd6825/foxshot/marionette"
)

// Runner executes capture requests with a fixed configuration. It's safe to
// reuse, but runs are independent and each starts its own browser.
type Runner struct {
	fs         afero.Fs
	config     Config
	logger     *log.Logger
	tracer     trace.Tracer
	browserEnv []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger shared by the runner, the browser supervisor
// and the protocol client.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTracer makes every stage and protocol command a span.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithBrowserEnv adds KEY=value pairs to the browser's environment.
func WithBrowserEnv(kv ...string) Option {
	return func(r *Runner) { r.browserEnv = append(r.browserEnv, kv...) }
}

// NewRunner returns a Runner writing profiles and output through fs.
func NewRunner(fs afero.Fs, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		fs:     fs,
		config: cfg,
		logger: log.NewNullLogger(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs req. The browser is always stopped and the profile always
// removed before Run returns; on failure the browser is killed without
// waiting.
func (r *Runner) Run(ctx context.Context, req Request) (_ *Result, rerr error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "capture", trace.WithAttributes(
		attribute.String("capture.mode", string(req.Mode)),
		attribute.String("capture.url", req.URL),
	))
	defer func() { endSpan(span, rerr) }()

	res := &Result{Mode: req.Mode, Output: req.Output}
	var (
		profile *firefox.Profile
		proc    *firefox.Process
		client  *marionette.Client
	)
	defer func() {
		if rerr != nil {
			if client != nil {
				_ = client.Close()
			}
			if proc != nil {
				r.logger.Warnf("capture", "run failed, killing firefox")
				if err := proc.Shutdown(0); err != nil {
					r.logger.Errorf("capture", "%v", err)
				}
			}
		}
		if profile == nil {
			return
		}
		if err := profile.Cleanup(); err != nil {
			if rerr == nil {
				rerr = err
				return
			}
			r.logger.Errorf("capture", "%v", err)
		}
	}()

	err := r.stage(ctx, "profile", func(context.Context) (err error) {
		profile, err = firefox.NewProfile(r.fs, r.config.ProfileParentDir.String, r.logger)
		if err != nil {
			return err
		}
		res.ProfileDir = profile.Dir()
		return profile.WritePrefs(r.config.Prefs)
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "launch", func(ctx context.Context) (err error) {
		proc, err = firefox.Launch(ctx, firefox.LaunchOptions{
			ExecutablePath: r.executablePath(),
			Profile:        profile,
			Args:           r.config.ExtraArgs,
			Env:            r.browserEnv,
			Logger:         r.logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "discover", func(ctx context.Context) (err error) {
		res.Port, err = firefox.DiscoverPort(ctx, r.fs, profile.PrefsPath(), firefox.DiscoveryOptions{
			PollInterval: r.config.PollInterval.TimeDuration(),
			Timeout:      r.config.DiscoveryTimeout.TimeDuration(),
			Exited:       proc.Done(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logger.Infof("capture", "marionette is listening on port %d", res.Port)

	err = r.stage(ctx, "connect", func(ctx context.Context) (err error) {
		addr := net.JoinHostPort(r.config.Host.String, strconv.Itoa(res.Port))
		client, err = marionette.Connect(ctx, addr, marionette.ClientOptions{
			DialTimeout: r.config.DialTimeout.TimeDuration(),
			Logger:      r.logger,
			Tracer:      r.tracer,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	res.SessionID = client.SessionID()
	res.BrowserName = client.Capabilities().BrowserName
	res.BrowserVersion = client.Capabilities().BrowserVersion

	err = r.stage(ctx, "navigate", func(ctx context.Context) error {
		r.logger.Infof("capture", "navigating to %s", req.URL)
		return client.Navigate(ctx, req.URL)
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "prepare", func(ctx context.Context) error {
		scripts := layoutScripts(req.Width, req.Height)
		if req.Script != "" {
			scripts = append(scripts, req.Script)
		}
		for _, s := range scripts {
			if _, err := client.ExecuteScript(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var data []byte
	err = r.stage(ctx, string(req.Mode), func(ctx context.Context) (err error) {
		data, err = r.capture(ctx, client, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "write", func(context.Context) error {
		if err := afero.WriteFile(r.fs, req.Output, data, 0o644); err != nil {
			return &errext.FilesystemError{Op: "writing", Path: req.Output, Err: err}
		}
		res.Bytes = len(data)
		res.ContentType = http.DetectContentType(data)
		r.logger.Infof("capture", "written: %s, %d bytes (%s)", req.Output, res.Bytes, res.ContentType)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "quit", func(ctx context.Context) error {
		return client.Quit(ctx)
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "shutdown", func(context.Context) error {
		return proc.Shutdown(r.config.ShutdownGrace.TimeDuration())
	})
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

func (r *Runner) capture(ctx context.Context, client *marionette.Client, req Request) ([]byte, error) {
	if req.Mode == ModePDF {
		return client.Print(ctx, req.Print)
	}

	id, err := client.FindElement(ctx, rootSelector)
	if err != nil {
		return nil, err
	}
	return client.TakeScreenshot(ctx, id)
}

func (r *Runner) executablePath() string {
	if r.config.FirefoxBin.String != "" {
		return r.config.FirefoxBin.String
	}
	return firefox.ExecutablePath(env.MapLookup(nil))
}

// stage runs fn inside a child span of the capture span.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "capture."+name)
	err := fn(ctx)
	endSpan(span, err)
	if err != nil {
		r.logger.Debugf("capture", "%s failed: %v", name, err)
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
