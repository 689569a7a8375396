// internal/jsbind/bridge.go

// Package jsbind projects the Go DOM into a goja runtime: window,
// document, element wrappers, events, shadow DOM, storage and workers.
// Every JS-facing method here runs on the runtime's event loop
// goroutine; only the worker registry needs its own lock because
// termination can arrive from outside the loop.
package jsbind

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/umbra/internal/dom"
	"github.com/xkilldash9x/umbra/internal/storage"
	"github.com/xkilldash9x/umbra/internal/worker"
)

// hiddenNodeProp carries the *dom.Node behind each wrapper object.
const hiddenNodeProp = "__umbra_node__"

// maxSignalPasses bounds slotchange redelivery when listeners keep
// mutating slotted content during the drain.
const maxSignalPasses = 8

// Bridge connects one document and its support services to a goja VM.
type Bridge struct {
	logger *zap.Logger
	doc    *dom.Document
	slots  *dom.SlotEngine
	store  *storage.Manager

	vm   *goja.Runtime
	loop *eventloop.EventLoop

	// wrappers gives every node a stable JS identity for the life of
	// the bridge. Touched only on the loop goroutine.
	wrappers      map[*dom.Node]*goja.Object
	eventWrappers map[*dom.Event]*goja.Object
	jsListeners   map[*dom.Node][]jsListener

	selection    *dom.Selection
	selectionObj *goja.Object

	workerMu sync.Mutex
	workers  []*worker.Worker
}

type jsListener struct {
	typ     string
	capture bool
	fn      goja.Value
	id      uint64
}

// NewBridge prepares a bridge for doc. Install must be called on the
// event loop before scripts run.
func NewBridge(logger *zap.Logger, doc *dom.Document, slots *dom.SlotEngine, store *storage.Manager) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		logger:        logger.Named("jsbind"),
		doc:           doc,
		slots:         slots,
		store:         store,
		wrappers:      make(map[*dom.Node]*goja.Object),
		eventWrappers: make(map[*dom.Event]*goja.Object),
		jsListeners:   make(map[*dom.Node][]jsListener),
		selection:     dom.NewSelection(doc),
	}
}

// Document returns the bound document.
func (b *Bridge) Document() *dom.Document { return b.doc }

// Install sets up the global surface on vm. Runs on the loop.
func (b *Bridge) Install(vm *goja.Runtime, loop *eventloop.EventLoop) {
	b.vm = vm
	b.loop = loop

	global := vm.GlobalObject()

	documentObj := b.wrapNode(b.doc.AsNode())

	window := vm.NewObject()
	_ = window.Set("document", documentObj)
	_ = window.Set("location", "about:blank")
	_ = window.Set("alert", func(call goja.FunctionCall) goja.Value {
		b.logger.Info("[JS Alert]", zap.String("message", call.Argument(0).String()))
		return goja.Undefined()
	})
	_ = window.Set("confirm", func(call goja.FunctionCall) goja.Value {
		b.logger.Info("[JS Confirm]", zap.String("message", call.Argument(0).String()))
		return vm.ToValue(true)
	})
	_ = window.Set("getSelection", func(call goja.FunctionCall) goja.Value {
		return b.wrapSelection()
	})

	if err := global.Set("window", window); err != nil {
		b.logger.Error("Failed to set 'window' global", zap.Error(err))
	}
	if err := global.Set("self", window); err != nil {
		b.logger.Error("Failed to set 'self' global", zap.Error(err))
	}
	if err := global.Set("document", documentObj); err != nil {
		b.logger.Error("Failed to set 'document' global", zap.Error(err))
	}

	b.installConsole()
	b.installEventConstructor()
	b.installSerializer()
	b.installWorkerConstructor()
	if b.store != nil {
		b.installStorage()
	}
}

// installConsole routes console output into the structured logger.
func (b *Bridge) installConsole() {
	console := b.vm.NewObject()
	logFunc := func(level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = b.stringify(arg)
			}
			b.logger.Log(level, "[JS Console]", zap.String("message", strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logFunc(zapcore.InfoLevel))
	_ = console.Set("info", logFunc(zapcore.InfoLevel))
	_ = console.Set("warn", logFunc(zapcore.WarnLevel))
	_ = console.Set("error", logFunc(zapcore.ErrorLevel))
	_ = console.Set("debug", logFunc(zapcore.DebugLevel))
	_ = b.vm.GlobalObject().Set("console", console)
}

// stringify renders a console argument, preferring JSON for objects.
func (b *Bridge) stringify(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return fmt.Sprintf("%v", v)
	}
	if _, isObj := v.(*goja.Object); isObj {
		if jsJSON := b.vm.Get("JSON"); jsJSON != nil && !goja.IsUndefined(jsJSON) {
			if stringify, ok := goja.AssertFunction(jsJSON.ToObject(b.vm).Get("stringify")); ok {
				if out, err := stringify(goja.Undefined(), v); err == nil && !goja.IsUndefined(out) {
					return out.String()
				}
			}
		}
	}
	return v.String()
}

// DrainSignals flushes the slot engine's pending signals, dispatching a
// slotchange event per slot. Listeners may re-queue signals by mutating
// slotted content, so the drain repeats up to maxSignalPasses. Runs on
// the loop.
func (b *Bridge) DrainSignals() {
	if b.slots == nil {
		return
	}
	for pass := 0; pass < maxSignalPasses; pass++ {
		pending := b.slots.SignalQueue().Drain()
		if len(pending) == 0 {
			return
		}
		for _, slot := range pending {
			ev := dom.NewEvent("slotchange", true, false)
			if _, err := b.dispatchDOMEvent(slot, ev); err != nil {
				b.logger.Warn("Failed to dispatch slotchange", zap.Error(err))
			}
		}
	}
	b.logger.Warn("Slot signals kept firing, abandoning this drain")
}

// TerminateWorkers stops every worker scripts have spawned. Safe to
// call from any goroutine.
func (b *Bridge) TerminateWorkers() {
	b.workerMu.Lock()
	workers := b.workers
	b.workers = nil
	b.workerMu.Unlock()

	for _, w := range workers {
		w.Terminate()
	}
}

func (b *Bridge) registerWorker(w *worker.Worker) {
	b.workerMu.Lock()
	b.workers = append(b.workers, w)
	b.workerMu.Unlock()
}

// unwrapNode recovers the Go node behind a wrapper object.
func (b *Bridge) unwrapNode(val goja.Value) (*dom.Node, error) {
	if val == nil || goja.IsNull(val) || goja.IsUndefined(val) {
		return nil, fmt.Errorf("node is null or undefined")
	}
	obj := val.ToObject(b.vm)
	if obj == nil {
		return nil, fmt.Errorf("value is not an object")
	}
	hidden := obj.Get(hiddenNodeProp)
	if hidden == nil || goja.IsUndefined(hidden) {
		return nil, fmt.Errorf("value is not a DOM node wrapper")
	}
	node, ok := hidden.Export().(*dom.Node)
	if !ok {
		return nil, fmt.Errorf("wrapper does not carry a DOM node")
	}
	return node, nil
}

// wrapNodeList converts nodes into a JS array.
func (b *Bridge) wrapNodeList(nodes []*dom.Node) goja.Value {
	wrapped := make([]interface{}, len(nodes))
	for i, n := range nodes {
		wrapped[i] = b.wrapNode(n)
	}
	return b.vm.NewArray(wrapped...)
}
