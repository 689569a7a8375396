// internal/jsbind/rangebind.go

package jsbind

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/dom"
)

// hiddenRangeProp carries the *dom.Range behind each range wrapper.
const hiddenRangeProp = "__umbra_range__"

// wrapRange builds the JS view of a range. Ranges are cheap and
// short-lived, so there is no identity cache for them.
func (b *Bridge) wrapRange(r *dom.Range) *goja.Object {
	obj := b.vm.NewObject()
	if err := obj.DefineDataProperty(hiddenRangeProp, b.vm.ToValue(r), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		b.logger.Error("Failed to attach range to wrapper", zap.Error(err))
	}

	_ = obj.Set("START_TO_START", dom.StartToStart)
	_ = obj.Set("START_TO_END", dom.StartToEnd)
	_ = obj.Set("END_TO_END", dom.EndToEnd)
	_ = obj.Set("END_TO_START", dom.EndToStart)

	defineRangeGetter := func(name string, fn func() goja.Value) {
		getter := b.vm.ToValue(func(call goja.FunctionCall) goja.Value { return fn() })
		_ = obj.DefineAccessorProperty(name, getter, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	defineRangeGetter("startContainer", func() goja.Value { return b.wrapNode(r.StartContainer()) })
	defineRangeGetter("startOffset", func() goja.Value { return b.vm.ToValue(r.StartOffset()) })
	defineRangeGetter("endContainer", func() goja.Value { return b.wrapNode(r.EndContainer()) })
	defineRangeGetter("endOffset", func() goja.Value { return b.vm.ToValue(r.EndOffset()) })
	defineRangeGetter("collapsed", func() goja.Value { return b.vm.ToValue(r.Collapsed()) })
	defineRangeGetter("commonAncestorContainer", func() goja.Value { return b.wrapNode(r.CommonAncestorContainer()) })

	boundaryCall := func(name string, set func(*dom.Node, int) error) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			n, err := b.unwrapNode(call.Argument(0))
			if err != nil {
				panic(b.vm.NewGoError(fmt.Errorf("%s: %w", name, err)))
			}
			if err := set(n, int(call.Argument(1).ToInteger())); err != nil {
				panic(b.vm.NewGoError(err))
			}
			return goja.Undefined()
		}
	}
	_ = obj.Set("setStart", boundaryCall("setStart", r.SetStart))
	_ = obj.Set("setEnd", boundaryCall("setEnd", r.SetEnd))

	_ = obj.Set("collapse", func(call goja.FunctionCall) goja.Value {
		r.Collapse(call.Argument(0).ToBoolean())
		return goja.Undefined()
	})
	_ = obj.Set("selectNode", func(call goja.FunctionCall) goja.Value {
		n, err := b.unwrapNode(call.Argument(0))
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("selectNode: %w", err)))
		}
		if err := r.SelectNode(n); err != nil {
			panic(b.vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set("selectNodeContents", func(call goja.FunctionCall) goja.Value {
		n, err := b.unwrapNode(call.Argument(0))
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("selectNodeContents: %w", err)))
		}
		if err := r.SelectNodeContents(n); err != nil {
			panic(b.vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set("compareBoundaryPoints", func(call goja.FunctionCall) goja.Value {
		other, err := b.unwrapRange(call.Argument(1))
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("compareBoundaryPoints: %w", err)))
		}
		cmp, err := r.CompareBoundaryPoints(int(call.Argument(0).ToInteger()), other)
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		return b.vm.ToValue(cmp)
	})
	_ = obj.Set("toString", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(r.String())
	})

	return obj
}

func (b *Bridge) unwrapRange(val goja.Value) (*dom.Range, error) {
	if val == nil || goja.IsNull(val) || goja.IsUndefined(val) {
		return nil, fmt.Errorf("range is null or undefined")
	}
	obj := val.ToObject(b.vm)
	if obj == nil {
		return nil, fmt.Errorf("value is not an object")
	}
	hidden := obj.Get(hiddenRangeProp)
	if hidden == nil || goja.IsUndefined(hidden) {
		return nil, fmt.Errorf("value is not a Range")
	}
	r, ok := hidden.Export().(*dom.Range)
	if !ok {
		return nil, fmt.Errorf("wrapper does not carry a range")
	}
	return r, nil
}

// wrapSelection exposes the document's single selection. The same JS
// object is handed out on every getSelection call.
func (b *Bridge) wrapSelection() *goja.Object {
	if b.selectionObj != nil {
		return b.selectionObj
	}
	sel := b.selection
	obj := b.vm.NewObject()

	rangeCountGetter := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(sel.RangeCount())
	})
	_ = obj.DefineAccessorProperty("rangeCount", rangeCountGetter, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = obj.Set("addRange", func(call goja.FunctionCall) goja.Value {
		r, err := b.unwrapRange(call.Argument(0))
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("addRange: %w", err)))
		}
		sel.AddRange(r)
		return goja.Undefined()
	})
	_ = obj.Set("removeAllRanges", func(call goja.FunctionCall) goja.Value {
		sel.RemoveAllRanges()
		return goja.Undefined()
	})
	_ = obj.Set("getRangeAt", func(call goja.FunctionCall) goja.Value {
		r, err := sel.GetRangeAt(int(call.Argument(0).ToInteger()))
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		return b.wrapRange(r)
	})
	_ = obj.Set("collapse", func(call goja.FunctionCall) goja.Value {
		n, err := b.unwrapNode(call.Argument(0))
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("collapse: %w", err)))
		}
		if err := sel.Collapse(n, int(call.Argument(1).ToInteger())); err != nil {
			panic(b.vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set("toString", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(sel.String())
	})

	b.selectionObj = obj
	return obj
}
