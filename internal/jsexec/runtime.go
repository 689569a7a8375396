// internal/jsexec/runtime.go

// Package jsexec hosts the goja runtime a document's scripts run in.
// All VM access happens on the event loop goroutine; callers interact
// through ExecuteScript, which serializes executions and bridges
// results, exceptions and promise settlement back to Go.
package jsexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/dom"
	"github.com/xkilldash9x/umbra/internal/jsbind"
	"github.com/xkilldash9x/umbra/internal/storage"
)

// DefaultTimeout is the fallback execution timeout if the context has
// no deadline.
const DefaultTimeout = 30 * time.Second

// Runtime is a persistent scripting environment bound to one document.
type Runtime struct {
	id     string
	logger *zap.Logger

	loop   *eventloop.EventLoop
	vm     *goja.Runtime
	bridge *jsbind.Bridge

	// execMu serializes script executions so interrupts and slot
	// signal draining cannot interleave across runs.
	execMu    sync.Mutex
	timeout   time.Duration
	closeOnce sync.Once
}

type execOutcome struct {
	value any
	err   error
}

// NewRuntime starts the event loop, installs the DOM bindings for doc
// and returns the ready runtime. A zero timeout selects DefaultTimeout.
func NewRuntime(doc *dom.Document, slots *dom.SlotEngine, store *storage.Manager, timeout time.Duration, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := &Runtime{
		id:      uuid.NewString(),
		logger:  logger.Named("jsexec"),
		loop:    eventloop.NewEventLoop(eventloop.EnableConsole(false)),
		timeout: timeout,
	}
	r.bridge = jsbind.NewBridge(logger, doc, slots, store)

	r.loop.Start()

	ready := make(chan struct{})
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		r.vm = vm
		r.bridge.Install(vm, r.loop)
		close(ready)
	})
	<-ready

	r.logger.Debug("Runtime initialized", zap.String("runtime_id", r.id))
	return r
}

// ID returns the runtime's unique identifier.
func (r *Runtime) ID() string { return r.id }

// Bridge returns the DOM bridge, letting callers reach the bound
// document and its wrappers.
func (r *Runtime) Bridge() *jsbind.Bridge { return r.bridge }

// ExecuteScript runs source inside the VM and returns the exported
// result. Promises are awaited. Cancellation interrupts the running
// script; executions with no deadline get the runtime's default timeout.
func (r *Runtime) ExecuteScript(ctx context.Context, name, source string) (any, error) {
	r.execMu.Lock()
	defer r.execMu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	prog, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, NewScriptError(name, "compile failed", err)
	}

	outCh := make(chan execOutcome, 1)
	syncDone := make(chan struct{})

	// The watchdog interrupts the VM when the context fires while the
	// synchronous portion of the script is still running.
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-syncDone:
		}
	}()

	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		// A stale interrupt from a prior timed-out run must not poison
		// this one.
		vm.ClearInterrupt()

		value, runErr := vm.RunProgram(prog)
		close(syncDone)

		if runErr != nil {
			outCh <- execOutcome{err: r.classify(name, runErr)}
			return
		}
		if promise, ok := value.Export().(*goja.Promise); ok {
			r.settlePromise(vm, name, value, promise, outCh)
			return
		}
		outCh <- execOutcome{value: value.Export()}
	})

	var out execOutcome
	select {
	case out = <-outCh:
	case <-ctx.Done():
		<-watchdogDone
		r.drainSignals()
		return nil, NewInterruptedError(name, ctx.Err())
	}
	<-watchdogDone

	// Mutations may have happened even when the script failed, so slot
	// signals drain on both paths.
	r.drainSignals()

	return out.value, out.err
}

// settlePromise attaches handlers to a pending promise, or reports the
// result straight away when it already settled. Runs on the loop.
func (r *Runtime) settlePromise(vm *goja.Runtime, name string, value goja.Value, promise *goja.Promise, outCh chan execOutcome) {
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		outCh <- execOutcome{value: promise.Result().Export()}
		return
	case goja.PromiseStateRejected:
		outCh <- execOutcome{err: NewScriptError(name, fmt.Sprintf("promise rejected: %v", promise.Result().Export()), nil)}
		return
	}

	thenFn, ok := goja.AssertFunction(value.ToObject(vm).Get("then"))
	if !ok {
		outCh <- execOutcome{err: NewScriptError(name, "promise has no callable then", nil)}
		return
	}

	onFulfilled := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		outCh <- execOutcome{value: call.Argument(0).Export()}
		return goja.Undefined()
	})
	onRejected := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		outCh <- execOutcome{err: NewScriptError(name, fmt.Sprintf("promise rejected: %v", call.Argument(0).Export()), nil)}
		return goja.Undefined()
	})

	if _, err := thenFn(value, onFulfilled, onRejected); err != nil {
		outCh <- execOutcome{err: r.classify(name, err)}
	}
}

// classify converts goja errors into the package's typed errors.
func (r *Runtime) classify(name string, err error) error {
	if interrupted, ok := err.(*goja.InterruptedError); ok {
		return NewInterruptedError(name, fmt.Errorf("%v", interrupted.Value()))
	}
	if exception, ok := err.(*goja.Exception); ok {
		return NewScriptError(name, exception.String(), err)
	}
	return NewScriptError(name, err.Error(), err)
}

// drainSignals flushes pending slot assignment signals as slotchange
// events. It runs on the loop so JS listeners can fire safely. The
// interrupt is cleared first so listeners survive a preceding timeout.
func (r *Runtime) drainSignals() {
	done := make(chan struct{})
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		vm.ClearInterrupt()
		r.bridge.DrainSignals()
	})
	<-done
}

// Close terminates spawned workers and stops the event loop, waiting
// for the current job to finish.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.bridge.TerminateWorkers()
		r.loop.Stop()
		r.logger.Debug("Runtime closed", zap.String("runtime_id", r.id))
	})
}
