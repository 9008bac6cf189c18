package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dashworker/internal/document"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/dashworker/internal/packages"
)

// Runtime is the single script runtime of a worker session. It owns a goja
// VM, the document scripts build and the packages they can require.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex
	logger *logging.Logger

	doc     *document.Document
	pkgs    *packages.Manager
	modules map[string]goja.Value

	// Models created by scripts, attached or not, and their JS handles.
	models  map[string]*document.Model
	handles map[string]*goja.Object

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	patchMu sync.RWMutex
	onPatch PatchFunc
	unlink  func()
}

// New creates a runtime with an empty document.
func New(config Config, pkgs *packages.Manager, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if pkgs == nil {
		pkgs = packages.NewManager(nil, nil, logger)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if config.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStack)
	}

	r := &Runtime{
		vm:      vm,
		config:  config,
		logger:  logger.Named("sandbox"),
		doc:     document.New(),
		pkgs:    pkgs,
		modules: map[string]goja.Value{},
		models:  map[string]*document.Model{},
		handles: map[string]*goja.Object{},
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// Document returns the document scripts operate on.
func (r *Runtime) Document() *document.Document { return r.doc }

// Packages returns the runtime's package manager.
func (r *Runtime) Packages() *packages.Manager { return r.pkgs }

// Install makes a package requirable from scripts.
func (r *Runtime) Install(ctx context.Context, spec string) error {
	_, err := r.pkgs.Install(ctx, spec)
	return err
}

// Run executes code and returns its exported completion value.
func (r *Runtime) Run(ctx context.Context, name, code string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	stop := r.guard(ctx)
	defer stop()

	prg, err := goja.Compile(name, code, false)
	if err != nil {
		return nil, scriptError(err)
	}
	val, err := r.vm.RunProgram(prg)
	if err != nil {
		return nil, scriptError(err)
	}
	return exportValue(val), nil
}

// RunMain runs the main script and checks that it produced the render
// triple.
func (r *Runtime) RunMain(ctx context.Context, code string) (MainResult, error) {
	val, err := r.Run(ctx, "main.js", code)
	if err != nil {
		return MainResult{}, err
	}
	items, ok := val.([]any)
	if !ok || len(items) != 3 {
		return MainResult{}, fmt.Errorf("%w: got %T", ErrBadResult, val)
	}
	return MainResult{DocsJSON: items[0], RenderItems: items[1], RootIDs: items[2]}, nil
}

// SetPatchCallback sets where sendPatch and linked document changes go.
func (r *Runtime) SetPatchCallback(fn PatchFunc) {
	r.patchMu.Lock()
	defer r.patchMu.Unlock()
	r.onPatch = fn
}

func (r *Runtime) sendPatch(patch any, buffers []any, msgID any) {
	r.patchMu.RLock()
	fn := r.onPatch
	r.patchMu.RUnlock()
	if fn == nil {
		r.logger.Debug("Dropping patch, no callback set")
		return
	}
	fn(patch, buffers, msgID)
}

// Link forwards document changes to the patch callback. Changes made with
// SetterJS are not forwarded. Linking again replaces the previous link.
func (r *Runtime) Link() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unlink != nil {
		r.unlink()
	}
	r.unlink = r.doc.Link(SetterJS, func(p document.Patch) {
		m, err := p.Map()
		if err != nil {
			r.logger.Error("Failed to encode patch", zap.Error(err))
			return
		}
		r.sendPatch(m, nil, nil)
	})
}

// ApplyPatch applies patch JSON from the page.
func (r *Runtime) ApplyPatch(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return ErrClosed
	}
	stop := r.guard(ctx)
	defer stop()

	if err := r.doc.ApplyJSONPatch(text, SetterJS); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}
	return nil
}

// UpdateLocation copies the recognized keys of values onto the document's
// location, lifting its read-only flag for the duration. It returns the keys
// applied.
func (r *Runtime) UpdateLocation(values map[string]any) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc := r.doc.Location()
	if loc == nil {
		return nil, ErrNoLocation
	}

	var applied []string
	err := loc.EditReadonly(func() error {
		var err error
		applied, err = loc.Update(values)
		return err
	})
	return applied, err
}

// guard interrupts the VM when ctx ends or the timeout passes. The returned
// func must be called once the VM call is over.
func (r *Runtime) guard(ctx context.Context) func() {
	var (
		timer   *time.Timer
		timeout <-chan time.Time
	)
	if r.config.Timeout > 0 {
		timer = time.NewTimer(r.config.Timeout)
		timeout = timer.C
	}

	vm := r.vm
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-timeout:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		if timer != nil {
			timer.Stop()
		}
		vm.ClearInterrupt()
	}
}

// setupGlobals configures global objects
func (r *Runtime) setupGlobals() error {
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	console := r.vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}

	// Timers are no-ops; scripts run to completion synchronously.
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }

	globals := map[string]any{
		"console":       console,
		"require":       r.requireFrom(""),
		"sendPatch":     r.jsSendPatch,
		"doc":           r.newDocObject(),
		"data":          r.newDataObject(),
		"setTimeout":    noop,
		"setInterval":   noop,
		"clearTimeout":  noop,
		"clearInterval": noop,
	}
	for name, v := range globals {
		if err := r.vm.Set(name, v); err != nil {
			return fmt.Errorf("set global %s: %w", name, err)
		}
	}
	return nil
}

func (r *Runtime) jsSendPatch(call goja.FunctionCall) goja.Value {
	var buffers []any
	if b, ok := exportValue(call.Argument(1)).([]any); ok {
		buffers = b
	}
	r.sendPatch(exportValue(call.Argument(0)), buffers, exportValue(call.Argument(2)))
	return goja.Undefined()
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		switch level {
		case "error":
			r.logger.Error(msg, zap.String("source", "console"))
		case "warn":
			r.logger.Warn(msg, zap.String("source", "console"))
		case "debug":
			r.logger.Debug(msg, zap.String("source", "console"))
		default:
			r.logger.Info(msg, zap.String("source", "console"))
		}
		return goja.Undefined()
	}
}

// Console returns the console output captured so far.
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry(nil), r.console...)
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unlink != nil {
		r.unlink()
		r.unlink = nil
	}
	r.vm = nil
	r.modules = nil
	return nil
}
