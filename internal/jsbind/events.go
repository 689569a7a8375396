// internal/jsbind/events.go

package jsbind

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/dom"
)

// hiddenEventProp carries the *dom.Event behind each event wrapper.
const hiddenEventProp = "__umbra_event__"

// installEventConstructor exposes `new Event(type, init)` to scripts.
// CustomEvent is the same constructor since detail is always supported.
func (b *Bridge) installEventConstructor() {
	ctor := func(call goja.ConstructorCall) *goja.Object {
		if len(call.Arguments) == 0 {
			panic(b.vm.NewGoError(fmt.Errorf("Event constructor requires a type")))
		}
		typ := call.Argument(0).String()

		var detail any
		bubbles, composed := false, false
		if init := call.Argument(1); init != nil && !goja.IsUndefined(init) && !goja.IsNull(init) {
			obj := init.ToObject(b.vm)
			bubbles = optionBool(b.vm, obj, "bubbles")
			composed = optionBool(b.vm, obj, "composed")
			if d := obj.Get("detail"); d != nil && !goja.IsUndefined(d) {
				detail = d.Export()
			}
		}

		ev := dom.NewEvent(typ, bubbles, composed)
		ev.Detail = detail
		return b.wrapEvent(ev)
	}
	_ = b.vm.Set("Event", ctor)
	_ = b.vm.Set("CustomEvent", ctor)
}

// wrapEvent returns the JS object for ev, stable for as long as the
// event sits in the wrapper cache. Dispatch seeds the cache so every
// listener in one dispatch sees the same object.
func (b *Bridge) wrapEvent(ev *dom.Event) *goja.Object {
	if obj, ok := b.eventWrappers[ev]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	b.eventWrappers[ev] = obj

	if err := obj.DefineDataProperty(hiddenEventProp, b.vm.ToValue(ev), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		b.logger.Error("Failed to attach event to wrapper", zap.Error(err))
	}

	_ = obj.Set("type", ev.Type)
	_ = obj.Set("bubbles", ev.Bubbles)
	_ = obj.Set("composed", ev.Composed)
	_ = obj.Set("detail", b.vm.ToValue(ev.Detail))

	getter := func(fn func() goja.Value) goja.Value {
		return b.vm.ToValue(func(call goja.FunctionCall) goja.Value { return fn() })
	}
	_ = obj.DefineAccessorProperty("target",
		getter(func() goja.Value { return b.wrapNode(ev.Target()) }),
		goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("currentTarget",
		getter(func() goja.Value { return b.wrapNode(ev.CurrentTarget()) }),
		goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("defaultPrevented",
		getter(func() goja.Value { return b.vm.ToValue(ev.DefaultPrevented()) }),
		goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = obj.Set("composedPath", func(call goja.FunctionCall) goja.Value {
		return b.wrapNodeList(ev.Path())
	})
	_ = obj.Set("stopPropagation", func(call goja.FunctionCall) goja.Value {
		ev.StopPropagation()
		return goja.Undefined()
	})
	_ = obj.Set("stopImmediatePropagation", func(call goja.FunctionCall) goja.Value {
		ev.StopImmediatePropagation()
		return goja.Undefined()
	})
	_ = obj.Set("preventDefault", func(call goja.FunctionCall) goja.Value {
		ev.PreventDefault()
		return goja.Undefined()
	})

	return obj
}

// unwrapEvent recovers the Go event behind a wrapper object.
func (b *Bridge) unwrapEvent(val goja.Value) (*dom.Event, error) {
	if val == nil || goja.IsNull(val) || goja.IsUndefined(val) {
		return nil, fmt.Errorf("event is null or undefined")
	}
	obj := val.ToObject(b.vm)
	if obj == nil {
		return nil, fmt.Errorf("value is not an object")
	}
	hidden := obj.Get(hiddenEventProp)
	if hidden == nil || goja.IsUndefined(hidden) {
		return nil, fmt.Errorf("value is not an Event")
	}
	ev, ok := hidden.Export().(*dom.Event)
	if !ok {
		return nil, fmt.Errorf("wrapper does not carry an event")
	}
	return ev, nil
}

// dispatchDOMEvent keeps one wrapper identity alive for the whole
// dispatch, then drops it from the cache.
func (b *Bridge) dispatchDOMEvent(target *dom.Node, ev *dom.Event) (bool, error) {
	b.wrapEvent(ev)
	defer delete(b.eventWrappers, ev)
	return target.DispatchEvent(ev)
}

// --- listener methods shared by every node wrapper ---

func (nb *nodeBinding) addEventListener(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	typ := call.Argument(0).String()
	fnVal := call.Argument(1)
	callable, ok := goja.AssertFunction(fnVal)
	if !ok {
		return goja.Undefined()
	}
	capture, once := listenerOptions(b.vm, call.Argument(2))

	wrapped := func(ev *dom.Event) {
		evObj := b.wrapEvent(ev)
		thisVal := b.wrapNode(ev.CurrentTarget())
		if _, err := callable(thisVal, evObj); err != nil {
			b.logger.Warn("Event listener threw", zap.String("type", typ), zap.Error(err))
		}
	}

	var id uint64
	if once {
		id = nb.node.AddEventListenerOnce(typ, capture, wrapped)
	} else {
		id = nb.node.AddEventListener(typ, capture, wrapped)
	}
	if id != 0 {
		b.jsListeners[nb.node] = append(b.jsListeners[nb.node], jsListener{typ: typ, capture: capture, fn: fnVal, id: id})
	}
	return goja.Undefined()
}

func (nb *nodeBinding) removeEventListener(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	typ := call.Argument(0).String()
	fnVal := call.Argument(1)
	capture, _ := listenerOptions(b.vm, call.Argument(2))

	entries := b.jsListeners[nb.node]
	for i, entry := range entries {
		if entry.typ == typ && entry.capture == capture && entry.fn.StrictEquals(fnVal) {
			nb.node.RemoveEventListener(typ, entry.id)
			b.jsListeners[nb.node] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return goja.Undefined()
}

func (nb *nodeBinding) dispatchEvent(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	ev, err := b.unwrapEvent(call.Argument(0))
	if err != nil {
		panic(b.vm.NewGoError(fmt.Errorf("dispatchEvent: %w", err)))
	}
	notCanceled, err := b.dispatchDOMEvent(nb.node, ev)
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	return b.vm.ToValue(notCanceled)
}

// listenerOptions reads the third addEventListener argument, either a
// capture boolean or an options object.
func listenerOptions(vm *goja.Runtime, v goja.Value) (capture, once bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false, false
	}
	if obj, isObj := v.(*goja.Object); isObj {
		return optionBool(vm, obj, "capture"), optionBool(vm, obj, "once")
	}
	return v.ToBoolean(), false
}

// optionBool reads one boolean member from an options value.
func optionBool(vm *goja.Runtime, opts goja.Value, key string) bool {
	if opts == nil || goja.IsUndefined(opts) || goja.IsNull(opts) {
		return false
	}
	v := opts.ToObject(vm).Get(key)
	return v != nil && v.ToBoolean()
}
