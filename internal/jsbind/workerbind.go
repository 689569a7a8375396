// internal/jsbind/workerbind.go

package jsbind

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/worker"
)

// workerBinding is the script-facing view of one spawned worker.
type workerBinding struct {
	bridge *Bridge
	worker *worker.Worker
	object *goja.Object

	// handler is only touched on the parent loop goroutine.
	handler goja.Value
}

// installWorkerConstructor exposes `new Worker(source, opts)`. There is
// no script URL resolution here; the first argument is the worker's
// source text.
func (b *Bridge) installWorkerConstructor() {
	ctor := func(call goja.ConstructorCall) *goja.Object {
		if len(call.Arguments) == 0 {
			panic(b.vm.NewGoError(fmt.Errorf("Worker constructor requires script source")))
		}
		source := call.Argument(0).String()

		name := "worker"
		if opts := call.Argument(1); opts != nil && !goja.IsUndefined(opts) && !goja.IsNull(opts) {
			if v := opts.ToObject(b.vm).Get("name"); v != nil && !goja.IsUndefined(v) {
				name = v.String()
			}
		}

		w, err := worker.Spawn(context.Background(), name, source, b.logger)
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		b.registerWorker(w)

		wb := &workerBinding{bridge: b, worker: w, object: call.This}
		wb.install()
		return call.This
	}
	_ = b.vm.Set("Worker", ctor)
}

func (wb *workerBinding) install() {
	b, obj := wb.bridge, wb.object

	_ = obj.Set("name", wb.worker.Name())

	_ = obj.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		if err := wb.worker.PostMessage(call.Argument(0).Export()); err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("postMessage: %w", err)))
		}
		return goja.Undefined()
	})
	_ = obj.Set("terminate", func(call goja.FunctionCall) goja.Value {
		wb.worker.Terminate()
		return goja.Undefined()
	})

	setter := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		wb.handler = call.Argument(0)
		return goja.Undefined()
	})
	getter := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if wb.handler == nil {
			return goja.Null()
		}
		return wb.handler
	})
	_ = obj.DefineAccessorProperty("onmessage", getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)

	// Worker messages hop onto the parent loop before touching the VM.
	wb.worker.OnMessage(func(raw []byte) {
		payload := append([]byte(nil), raw...)
		b.loop.RunOnLoop(func(vm *goja.Runtime) {
			wb.deliver(vm, payload)
		})
	})
}

func (wb *workerBinding) deliver(vm *goja.Runtime, raw []byte) {
	b := wb.bridge
	handler, ok := goja.AssertFunction(wb.handler)
	if !ok {
		b.logger.Debug("Dropping worker message, no onmessage handler",
			zap.String("worker_name", wb.worker.Name()))
		return
	}

	var data any
	if err := codec.Unmarshal(raw, &data); err != nil {
		b.logger.Warn("Failed to decode worker message", zap.Error(err))
		return
	}

	event := vm.NewObject()
	_ = event.Set("type", "message")
	_ = event.Set("data", vm.ToValue(data))

	if _, err := handler(wb.object, event); err != nil {
		b.logger.Warn("Worker onmessage handler threw", zap.Error(err))
	}
}
