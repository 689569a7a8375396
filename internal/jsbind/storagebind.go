// internal/jsbind/storagebind.go

package jsbind

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/umbra/internal/storage"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// installStorage exposes the storage manager as a promise-based
// indexedDB-style global. Operations resolve immediately because the
// backing store is synchronous; the promise surface keeps scripts
// written against the async idiom working unchanged.
func (b *Bridge) installStorage() {
	idb := b.vm.NewObject()

	_ = idb.Set("open", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := b.vm.NewPromise()
		db, err := b.store.Open(call.Argument(0).String())
		if err != nil {
			reject(b.vm.NewGoError(err))
		} else {
			resolve(b.wrapDatabase(db))
		}
		return b.vm.ToValue(promise)
	})
	_ = idb.Set("deleteDatabase", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := b.vm.NewPromise()
		if err := b.store.DeleteDatabase(call.Argument(0).String()); err != nil {
			reject(b.vm.NewGoError(err))
		} else {
			resolve(goja.Undefined())
		}
		return b.vm.ToValue(promise)
	})
	_ = idb.Set("databases", func(call goja.FunctionCall) goja.Value {
		promise, resolve, _ := b.vm.NewPromise()
		names := b.store.Databases()
		out := make([]interface{}, len(names))
		for i, name := range names {
			out[i] = name
		}
		resolve(b.vm.NewArray(out...))
		return b.vm.ToValue(promise)
	})

	_ = b.vm.GlobalObject().Set("indexedDB", idb)
}

func (b *Bridge) wrapDatabase(db *storage.Database) *goja.Object {
	obj := b.vm.NewObject()
	_ = obj.Set("name", db.Name())

	_ = obj.Set("createObjectStore", func(call goja.FunctionCall) goja.Value {
		return b.wrapObjectStore(db.CreateObjectStore(call.Argument(0).String()))
	})
	_ = obj.Set("objectStore", func(call goja.FunctionCall) goja.Value {
		store, err := db.ObjectStore(call.Argument(0).String())
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		return b.wrapObjectStore(store)
	})
	_ = obj.Set("deleteObjectStore", func(call goja.FunctionCall) goja.Value {
		if err := db.DeleteObjectStore(call.Argument(0).String()); err != nil {
			panic(b.vm.NewGoError(err))
		}
		return goja.Undefined()
	})

	namesGetter := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		names := db.StoreNames()
		out := make([]interface{}, len(names))
		for i, name := range names {
			out[i] = name
		}
		return b.vm.NewArray(out...)
	})
	_ = obj.DefineAccessorProperty("objectStoreNames", namesGetter, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)

	return obj
}

func (b *Bridge) wrapObjectStore(store *storage.ObjectStore) *goja.Object {
	obj := b.vm.NewObject()
	_ = obj.Set("name", store.Name())

	_ = obj.Set("put", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := b.vm.NewPromise()
		key := call.Argument(0).String()
		if err := store.Put(key, call.Argument(1).Export()); err != nil {
			reject(b.vm.NewGoError(fmt.Errorf("put: %w", err)))
		} else {
			resolve(key)
		}
		return b.vm.ToValue(promise)
	})
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := b.vm.NewPromise()
		raw, err := store.GetRaw(call.Argument(0).String())
		switch {
		case err == nil:
			var decoded any
			if uerr := codec.Unmarshal(raw, &decoded); uerr != nil {
				reject(b.vm.NewGoError(uerr))
			} else {
				resolve(b.vm.ToValue(decoded))
			}
		case isKeyNotFound(err):
			// Missing keys resolve to undefined, not an error.
			resolve(goja.Undefined())
		default:
			reject(b.vm.NewGoError(err))
		}
		return b.vm.ToValue(promise)
	})
	_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := b.vm.NewPromise()
		err := store.Delete(call.Argument(0).String())
		if err != nil && !isKeyNotFound(err) {
			reject(b.vm.NewGoError(err))
		} else {
			resolve(goja.Undefined())
		}
		return b.vm.ToValue(promise)
	})
	_ = obj.Set("getAll", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := b.vm.NewPromise()
		records := store.GetAll()
		out := make([]interface{}, 0, len(records))
		var failed error
		for _, raw := range records {
			var decoded any
			if err := codec.Unmarshal(raw, &decoded); err != nil {
				failed = err
				break
			}
			out = append(out, b.vm.ToValue(decoded))
		}
		if failed != nil {
			reject(b.vm.NewGoError(failed))
		} else {
			resolve(b.vm.NewArray(out...))
		}
		return b.vm.ToValue(promise)
	})
	_ = obj.Set("getAllKeys", func(call goja.FunctionCall) goja.Value {
		promise, resolve, _ := b.vm.NewPromise()
		keys := store.Keys()
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		resolve(b.vm.NewArray(out...))
		return b.vm.ToValue(promise)
	})
	_ = obj.Set("count", func(call goja.FunctionCall) goja.Value {
		promise, resolve, _ := b.vm.NewPromise()
		resolve(store.Count())
		return b.vm.ToValue(promise)
	})
	_ = obj.Set("clear", func(call goja.FunctionCall) goja.Value {
		promise, resolve, _ := b.vm.NewPromise()
		store.Clear()
		resolve(goja.Undefined())
		return b.vm.ToValue(promise)
	})

	return obj
}

func isKeyNotFound(err error) bool {
	var notFound *storage.KeyNotFoundError
	return errors.As(err, &notFound)
}
