package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dashworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/dashworker/internal/packages"
	"github.com/GriffinCanCode/dashworker/internal/protocol"
	"github.com/GriffinCanCode/dashworker/internal/sandbox"
)

var ErrNotInitialized = errors.New("worker runtime not initialized")

// Config is what a worker runs: the runtime settings, the ordered package
// list and the main script.
type Config struct {
	Runtime    sandbox.Config
	Packages   []string
	MainScript string

	// Manager installs packages into the runtime. Nil means builtin
	// packages only.
	Manager *packages.Manager
}

// Worker drives one runtime through startup and relays page messages into
// it. All runtime work runs one task at a time.
type Worker struct {
	config  Config
	poster  protocol.Poster
	logger  *logging.Logger
	metrics *monitoring.Metrics

	// tasks serializes every runtime interaction.
	tasks sync.Mutex
	rt    *sandbox.Runtime

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a worker posting to poster. metrics may be nil.
func New(config Config, poster protocol.Poster, logger *logging.Logger, metrics *monitoring.Metrics) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		config:  config,
		poster:  poster,
		logger:  logger.Named("worker"),
		metrics: metrics,
		ready:   make(chan struct{}),
	}
}

// Runtime returns the runtime handle, nil before Initialize.
func (w *Worker) Runtime() *sandbox.Runtime {
	w.tasks.Lock()
	defer w.tasks.Unlock()
	return w.rt
}

// Start runs the startup sequence: Initialize, InstallPackages with the
// configured list, then ExecuteMainScript. Only a runtime or main script
// failure is returned.
func (w *Worker) Start(ctx context.Context) error {
	w.tasks.Lock()
	defer w.tasks.Unlock()

	if err := w.initialize(); err != nil {
		return err
	}
	w.installPackages(ctx, w.config.Packages)
	return w.executeMainScript(ctx)
}

// Initialize acquires the runtime handle and registers the patch callback.
// The handle is created once; later calls reuse it.
func (w *Worker) Initialize(ctx context.Context) error {
	w.tasks.Lock()
	defer w.tasks.Unlock()
	return w.initialize()
}

func (w *Worker) initialize() error {
	w.status("Loading runtime")

	if w.rt == nil {
		manager := w.config.Manager
		if manager == nil {
			manager = packages.NewManager(nil, nil, w.logger)
		}
		rt, err := sandbox.New(w.config.Runtime, manager, w.logger)
		if err != nil {
			return fmt.Errorf("create runtime: %w", err)
		}
		w.rt = rt
	}
	w.rt.SetPatchCallback(func(patch any, buffers []any, msgID any) {
		w.post(protocol.Patch(patch, buffers, msgID))
	})

	w.status("Loaded runtime")
	w.readyOnce.Do(func() { close(w.ready) })
	return nil
}

// InstallPackages installs specs in order, one at a time. Failures are
// logged and reported as status messages; they never stop the loop.
func (w *Worker) InstallPackages(ctx context.Context, specs []string) {
	w.tasks.Lock()
	defer w.tasks.Unlock()
	w.installPackages(ctx, specs)
}

func (w *Worker) installPackages(ctx context.Context, specs []string) {
	for _, spec := range specs {
		name := packages.Name(spec)
		w.status("Installing " + name)

		start := time.Now()
		err := w.install(ctx, spec)
		if w.metrics != nil {
			w.metrics.RecordInstall(err == nil, time.Since(start))
		}
		if err != nil {
			w.logger.Warn("Package install failed",
				zap.String("spec", spec),
				zap.Error(err),
			)
			w.status("Error while installing " + name)
		}
	}
	w.logger.Info("Packages loaded", zap.Int("count", len(specs)))
}

func (w *Worker) install(ctx context.Context, spec string) error {
	if w.rt == nil {
		return ErrNotInitialized
	}
	return w.rt.Install(ctx, spec)
}

// ExecuteMainScript runs the main script and posts its render message. On
// failure it posts the diagnostic line of the error and returns the error.
func (w *Worker) ExecuteMainScript(ctx context.Context) error {
	w.tasks.Lock()
	defer w.tasks.Unlock()
	return w.executeMainScript(ctx)
}

func (w *Worker) executeMainScript(ctx context.Context) error {
	w.status("Executing code")

	start := time.Now()
	res, err := w.runMain(ctx)
	if w.metrics != nil {
		w.metrics.RecordScript(err == nil, time.Since(start))
	}
	if err != nil {
		w.logger.Error("Main script failed", zap.Error(err))
		w.status(Diagnostic(err))
		return err
	}

	w.post(protocol.Render(res.DocsJSON, res.RenderItems, res.RootIDs))
	return nil
}

func (w *Worker) runMain(ctx context.Context) (sandbox.MainResult, error) {
	if w.rt == nil {
		return sandbox.MainResult{}, ErrNotInitialized
	}
	return w.rt.RunMain(ctx, w.config.MainScript)
}

// OnMessage handles one inbound message. It waits until the runtime exists
// and for any task in flight. Unknown types are ignored.
func (w *Worker) OnMessage(ctx context.Context, msg protocol.Message) error {
	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.tasks.Lock()
	defer w.tasks.Unlock()

	if w.metrics != nil {
		w.metrics.RecordMessage("inbound", string(msg.Type))
	}

	var err error
	switch msg.Type {
	case protocol.TypeRendered:
		w.rt.Link()
	case protocol.TypePatch:
		err = w.applyPatch(ctx, msg)
	case protocol.TypeLocation:
		err = w.updateLocation(msg)
	default:
		w.logger.Debug("Ignoring message", zap.String("type", string(msg.Type)))
	}

	if err != nil {
		w.logger.Warn("Inbound message failed",
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
		w.status(Diagnostic(err))
	}
	return err
}

func (w *Worker) applyPatch(ctx context.Context, msg protocol.Message) error {
	text, err := msg.PatchText()
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	if err := w.rt.ApplyPatch(ctx, text); err != nil {
		return err
	}
	w.post(protocol.Idle())
	return nil
}

func (w *Worker) updateLocation(msg protocol.Message) error {
	text, err := msg.LocationText()
	if err != nil {
		return fmt.Errorf("location: %w", err)
	}
	var values map[string]any
	if err := sonic.UnmarshalString(text, &values); err != nil {
		return fmt.Errorf("location: %w", err)
	}

	applied, err := w.rt.UpdateLocation(values)
	if errors.Is(err, sandbox.ErrNoLocation) {
		w.logger.Debug("Document has no location, dropping update")
		return nil
	}
	if err != nil {
		return fmt.Errorf("location: %w", err)
	}
	w.logger.Debug("Location updated", zap.Strings("fields", applied))
	return nil
}

// Close releases the runtime.
func (w *Worker) Close() error {
	w.tasks.Lock()
	defer w.tasks.Unlock()
	if w.rt == nil {
		return nil
	}
	return w.rt.Close()
}

func (w *Worker) status(msg string) {
	w.post(protocol.Status(msg))
}

func (w *Worker) post(m protocol.Message) {
	if w.metrics != nil {
		w.metrics.RecordMessage("outbound", string(m.Type))
	}
	if err := w.poster.Post(m); err != nil {
		w.logger.Debug("Post failed", zap.String("type", string(m.Type)), zap.Error(err))
	}
}
