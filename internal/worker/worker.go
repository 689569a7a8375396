// internal/worker/worker.go

// Package worker runs scripts in isolated goja runtimes connected to
// their parent through message ports. Each worker owns a private event
// loop goroutine; nothing is shared with the parent runtime except the
// serialized messages that cross the port pair.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// Worker executes one script on its own event loop.
type Worker struct {
	id     string
	name   string
	logger *zap.Logger

	loop *eventloop.EventLoop
	// vm is set on the loop goroutine and read by shutdown.
	vm atomic.Pointer[goja.Runtime]

	// outside is the parent-facing end, inside the script-facing end.
	outside *MessagePort
	inside  *MessagePort

	group  *errgroup.Group
	cancel context.CancelFunc

	shutdownOnce sync.Once
}

// Spawn compiles source, starts a dedicated event loop and runs the
// script inside it. The worker keeps running after the script's top
// level returns so message handlers and timers stay live; it stops when
// ctx is canceled or Terminate is called.
func Spawn(ctx context.Context, name, source string, logger *zap.Logger) (*Worker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prog, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, fmt.Errorf("worker %q failed to compile: %w", name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(ctx)

	w := &Worker{
		id:     uuid.NewString(),
		name:   name,
		logger: logger.Named("worker").With(zap.String("worker_name", name)),
		loop:   eventloop.NewEventLoop(eventloop.EnableConsole(false)),
		group:  group,
		cancel: cancel,
	}
	w.outside, w.inside = NewMessageChannel()

	w.loop.Start()

	startCh := make(chan error, 1)
	w.loop.RunOnLoop(func(vm *goja.Runtime) {
		w.vm.Store(vm)
		w.installScope(vm)
		_, err := vm.RunProgram(prog)
		startCh <- err
	})

	// Deliver parent messages onto the worker's loop.
	w.inside.OnMessage(func(raw []byte) {
		w.loop.RunOnLoop(func(vm *goja.Runtime) {
			w.deliverToScript(vm, raw)
		})
	})

	w.group.Go(func() error {
		var startErr error
		select {
		case startErr = <-startCh:
			if startErr != nil {
				w.logger.Warn("Worker script failed", zap.Error(startErr))
			}
		case <-groupCtx.Done():
		}
		<-groupCtx.Done()
		w.shutdown()
		if startErr != nil {
			return fmt.Errorf("worker %q script error: %w", name, startErr)
		}
		return nil
	})

	w.logger.Debug("Worker spawned", zap.String("worker_id", w.id))
	return w, nil
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() string { return w.id }

// Name returns the name the worker was spawned with.
func (w *Worker) Name() string { return w.name }

// PostMessage sends a value into the worker. It is received by the
// script's onmessage handler as the event's data.
func (w *Worker) PostMessage(v any) error {
	return w.outside.Post(v)
}

// OnMessage registers the parent-side handler for messages the script
// posts. The handler receives the serialized payload and runs on the
// worker's loop goroutine; reschedule inside it when another goroutine
// must process the message.
func (w *Worker) OnMessage(fn func(data []byte)) {
	w.outside.OnMessage(fn)
}

// Terminate stops the worker, interrupting any running script, and
// waits for its goroutines to finish.
func (w *Worker) Terminate() {
	w.cancel()
	_ = w.group.Wait()
}

// Join blocks until the worker stops and reports the script error, if
// the top-level evaluation failed.
func (w *Worker) Join() error {
	return w.group.Wait()
}

func (w *Worker) shutdown() {
	w.shutdownOnce.Do(func() {
		if vm := w.vm.Load(); vm != nil {
			vm.Interrupt("worker terminated")
		}
		// Runs on the errgroup goroutine, never the loop itself, so the
		// blocking Stop cannot deadlock and leaves no loop goroutine behind.
		w.loop.Stop()
		w.outside.Close()
		w.inside.Close()
		w.logger.Debug("Worker stopped", zap.String("worker_id", w.id))
	})
}

// installScope wires the worker-global surface: self, postMessage,
// close, name and console. Timers come from the event loop itself.
func (w *Worker) installScope(vm *goja.Runtime) {
	global := vm.GlobalObject()
	if err := global.Set("self", global); err != nil {
		w.logger.Error("Failed to set 'self' global", zap.Error(err))
	}
	_ = global.Set("name", w.name)

	_ = global.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		if err := w.inside.Post(call.Argument(0).Export()); err != nil {
			panic(vm.NewGoError(fmt.Errorf("postMessage: %w", err)))
		}
		return goja.Undefined()
	})

	_ = global.Set("close", func(call goja.FunctionCall) goja.Value {
		// Stopping the loop from inside a loop job would deadlock.
		go w.cancel()
		return goja.Undefined()
	})

	w.installConsole(vm)
}

func (w *Worker) installConsole(vm *goja.Runtime) {
	console := vm.NewObject()
	logFunc := func(level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			w.logger.Log(level, "[Worker Console]", zap.String("message", strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logFunc(zapcore.InfoLevel))
	_ = console.Set("info", logFunc(zapcore.InfoLevel))
	_ = console.Set("warn", logFunc(zapcore.WarnLevel))
	_ = console.Set("error", logFunc(zapcore.ErrorLevel))
	_ = console.Set("debug", logFunc(zapcore.DebugLevel))
	_ = vm.GlobalObject().Set("console", console)
}

// deliverToScript hands one message to the script's onmessage handler.
func (w *Worker) deliverToScript(vm *goja.Runtime, raw []byte) {
	handlerVal := vm.Get("onmessage")
	handler, ok := goja.AssertFunction(handlerVal)
	if !ok {
		w.logger.Debug("Dropping message, worker has no onmessage handler")
		return
	}

	var data any
	if err := codec.Unmarshal(raw, &data); err != nil {
		w.logger.Warn("Failed to decode worker message", zap.Error(err))
		return
	}

	event := vm.NewObject()
	_ = event.Set("type", "message")
	_ = event.Set("data", vm.ToValue(data))

	if _, err := handler(vm.GlobalObject(), event); err != nil {
		w.logger.Warn("Worker onmessage handler failed", zap.Error(err))
	}
}
