// internal/jsexec/runtime_test.go
package jsexec_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/umbra/internal/dom"
	"github.com/xkilldash9x/umbra/internal/dom/htmlconv"
	"github.com/xkilldash9x/umbra/internal/jsexec"
	"github.com/xkilldash9x/umbra/internal/storage"
)

const pageMarkup = `<html><head><title>Umbra</title></head><body><div id="app"><ul><li class="one">alpha</li><li class="two">beta</li></ul></div></body></html>`

type runtimeFixture struct {
	doc *dom.Document
	rt  *jsexec.Runtime
}

// newRuntimeFixture builds a scripting environment around a parsed page,
// with slot assignment and in-memory storage wired the way the run
// command assembles them.
func newRuntimeFixture(t *testing.T) *runtimeFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	doc, err := htmlconv.ParseString(pageMarkup, logger)
	require.NoError(t, err)

	slots := dom.NewSlotEngine(logger)
	doc.AddObserver(slots)

	store, err := storage.NewManager("", logger)
	require.NoError(t, err)

	rt := jsexec.NewRuntime(doc, slots, store, 0, logger)
	t.Cleanup(func() { _ = store.Close() })
	t.Cleanup(rt.Close)

	return &runtimeFixture{doc: doc, rt: rt}
}

// run executes source and fails the test on any script error.
func (f *runtimeFixture) run(t *testing.T, source string) any {
	t.Helper()
	result, err := f.rt.ExecuteScript(context.Background(), t.Name(), source)
	require.NoError(t, err)
	return result
}

func TestRuntime_Identity(t *testing.T) {
	f := newRuntimeFixture(t)

	_, err := uuid.Parse(f.rt.ID())
	assert.NoError(t, err, "runtime IDs should be valid UUIDs")
	assert.Same(t, f.doc, f.rt.Bridge().Document())
}

func TestExecuteScript_ExpressionResult(t *testing.T) {
	f := newRuntimeFixture(t)

	result := f.run(t, `6 * 7`)
	assert.EqualValues(t, 42, result)
}

func TestExecuteScript_CompileError(t *testing.T) {
	f := newRuntimeFixture(t)

	result, err := f.rt.ExecuteScript(context.Background(), "bad-syntax", `function {`)
	assert.Nil(t, result)
	require.Error(t, err)

	var scriptErr *jsexec.ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "bad-syntax", scriptErr.Script)
	assert.Contains(t, err.Error(), "compile failed")
	assert.NotNil(t, scriptErr.Unwrap())
}

func TestExecuteScript_ThrownException(t *testing.T) {
	f := newRuntimeFixture(t)

	_, err := f.rt.ExecuteScript(context.Background(), "thrower", `throw new Error("kaput");`)
	require.Error(t, err)

	var scriptErr *jsexec.ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Contains(t, scriptErr.Message, "kaput")
}

func TestExecuteScript_TimeoutInterruptsAndRecovers(t *testing.T) {
	f := newRuntimeFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := f.rt.ExecuteScript(ctx, "spinner", `for (;;) {}`)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second, "interrupt must not wait out the default timeout")

	var interrupted *jsexec.InterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, "spinner", interrupted.Script)

	// The next execution clears the stale interrupt and runs normally.
	assert.EqualValues(t, 2, f.run(t, `1 + 1`))
}

func TestExecuteScript_PromiseSettlement(t *testing.T) {
	f := newRuntimeFixture(t)

	t.Run("already fulfilled", func(t *testing.T) {
		result := f.run(t, `Promise.resolve(7).then(function(v) { return v * 6; })`)
		assert.EqualValues(t, 42, result)
	})

	t.Run("settled by a timer", func(t *testing.T) {
		result := f.run(t, `
			new Promise(function(resolve) {
				setTimeout(function() { resolve("later"); }, 10);
			})
		`)
		assert.Equal(t, "later", result)
	})

	t.Run("rejection becomes a script error", func(t *testing.T) {
		_, err := f.rt.ExecuteScript(context.Background(), "rejecter", `Promise.reject("nope")`)
		require.Error(t, err)

		var scriptErr *jsexec.ScriptError
		require.ErrorAs(t, err, &scriptErr)
		assert.Contains(t, scriptErr.Message, "promise rejected")
		assert.Contains(t, scriptErr.Message, "nope")
	})
}

func TestExecuteScript_DocumentGlobals(t *testing.T) {
	f := newRuntimeFixture(t)

	result := f.run(t, `[window === self, document === window.document, typeof console.log, document.title]`)
	assert.Equal(t, []any{true, true, "function", "Umbra"}, result)
}

func TestExecuteScript_MutationsPersistAcrossRuns(t *testing.T) {
	f := newRuntimeFixture(t)

	f.run(t, `
		var el = document.createElement("p");
		el.id = "made";
		el.textContent = "hi";
		document.body.appendChild(el);
		true;
	`)

	// The same document backs every execution.
	assert.Equal(t, "hi", f.run(t, `document.getElementById("made").textContent`))

	made := f.doc.GetElementByID("made")
	require.NotNil(t, made, "script mutations must land in the Go tree")
	assert.Equal(t, "hi", made.TextContent())
}

func TestExecuteScript_SelectorsAndTraversal(t *testing.T) {
	f := newRuntimeFixture(t)

	assert.EqualValues(t, 2, f.run(t, `document.querySelectorAll("ul li").length`))
	assert.Equal(t, "beta", f.run(t, `document.querySelector("li.two").textContent`))

	result := f.run(t, `
		var app = document.getElementById("app");
		[app.matches("div#app"), app.closest("body") === document.body, app.contains(document.body)]
	`)
	assert.Equal(t, []any{true, true, false}, result)
}

func TestExecuteScript_InnerHTML(t *testing.T) {
	f := newRuntimeFixture(t)

	result := f.run(t, `
		var app = document.getElementById("app");
		app.innerHTML = "<span class='x'>fresh</span>";
		app.outerHTML
	`)
	assert.Equal(t, `<div id="app"><span class="x">fresh</span></div>`, result)
}

func TestExecuteScript_EventListeners(t *testing.T) {
	f := newRuntimeFixture(t)

	t.Run("detail reaches listeners", func(t *testing.T) {
		result := f.run(t, `
			var got = null;
			document.body.addEventListener("ping", function(e) { got = e.detail.n; });
			document.getElementById("app").dispatchEvent(new Event("ping", {bubbles: true, detail: {n: 7}}));
			got
		`)
		assert.EqualValues(t, 7, result)
	})

	t.Run("removeEventListener detaches by function identity", func(t *testing.T) {
		result := f.run(t, `
			var count = 0;
			function bump() { count++; }
			document.body.addEventListener("tick", bump);
			document.body.dispatchEvent(new Event("tick"));
			document.body.removeEventListener("tick", bump);
			document.body.dispatchEvent(new Event("tick"));
			count
		`)
		assert.EqualValues(t, 1, result)
	})

	t.Run("once listeners fire a single time", func(t *testing.T) {
		result := f.run(t, `
			var n = 0;
			document.body.addEventListener("go", function() { n++; }, {once: true});
			document.body.dispatchEvent(new Event("go"));
			document.body.dispatchEvent(new Event("go"));
			n
		`)
		assert.EqualValues(t, 1, result)
	})
}

func TestExecuteScript_ShadowDOM(t *testing.T) {
	f := newRuntimeFixture(t)

	t.Run("closed roots are masked from the host", func(t *testing.T) {
		result := f.run(t, `
			var host = document.getElementById("app");
			var sr = host.attachShadow({mode: "closed"});
			sr.innerHTML = "<span>inside</span>";
			[host.shadowRoot === null, sr.querySelector("span").textContent, sr.host === host]
		`)
		assert.Equal(t, []any{true, "inside", true}, result)
	})

	t.Run("events retarget at the shadow boundary", func(t *testing.T) {
		result := f.run(t, `
			var host = document.createElement("div");
			document.body.appendChild(host);
			var sr = host.attachShadow({mode: "closed"});
			sr.innerHTML = "<button>go</button>";
			var btn = sr.querySelector("button");

			var composedSeen = null, scopedSeen = null;
			document.body.addEventListener("press", function(e) { composedSeen = e.target === host; });
			document.body.addEventListener("hidden", function(e) { scopedSeen = "leaked"; });

			btn.dispatchEvent(new Event("press", {bubbles: true, composed: true}));
			btn.dispatchEvent(new Event("hidden", {bubbles: true, composed: false}));
			[composedSeen, scopedSeen]
		`)
		assert.Equal(t, []any{true, nil}, result, "composed events cross the closed boundary retargeted, non-composed ones stay inside")
	})
}

func TestExecuteScript_SlotchangeFiresAfterRun(t *testing.T) {
	f := newRuntimeFixture(t)

	// Assignment signals drain after the script finishes, so the
	// listener's effect is visible to the next execution.
	f.run(t, `
		var host = document.getElementById("app");
		var sr = host.attachShadow({mode: "open"});
		sr.innerHTML = "<slot></slot>";

		slotEvents = [];
		sr.querySelector("slot").addEventListener("slotchange", function(e) {
			slotEvents.push(e.target.nodeName);
		});

		host.appendChild(document.createElement("p"));
		true;
	`)

	assert.Equal(t, "SLOT", f.run(t, `slotEvents.join(",")`))
}

func TestExecuteScript_RangeAndSelection(t *testing.T) {
	f := newRuntimeFixture(t)

	result := f.run(t, `
		var p = document.createElement("p");
		p.textContent = "Hello brave world";
		document.body.appendChild(p);

		var r = document.createRange();
		var text = p.firstChild;
		r.setStart(text, 6);
		r.setEnd(text, 11);

		var sel = window.getSelection();
		sel.addRange(r);
		[r.toString(), sel.toString(), sel.rangeCount, r.collapsed]
	`)
	assert.Equal(t, []any{"brave", "brave", int64(1), false}, result)
}

func TestExecuteScript_StoragePromises(t *testing.T) {
	f := newRuntimeFixture(t)

	t.Run("put and get round trip", func(t *testing.T) {
		result := f.run(t, `
			indexedDB.open("session").then(function(db) {
				var kv = db.createObjectStore("kv");
				return kv.put("greeting", {msg: "hi", n: 2}).then(function() {
					return kv.get("greeting");
				}).then(function(rec) {
					return rec.msg + ":" + rec.n;
				});
			})
		`)
		assert.Equal(t, "hi:2", result)
	})

	t.Run("missing keys resolve to undefined", func(t *testing.T) {
		result := f.run(t, `
			indexedDB.open("session").then(function(db) {
				return db.objectStore("kv").get("absent").then(function(v) {
					return v === undefined;
				});
			})
		`)
		assert.Equal(t, true, result)
	})

	t.Run("count and delete", func(t *testing.T) {
		result := f.run(t, `
			indexedDB.open("session").then(function(db) {
				var kv = db.objectStore("kv");
				return kv.delete("greeting").then(function() { return kv.count(); });
			})
		`)
		assert.EqualValues(t, 0, result)
	})
}

func TestExecuteScript_WorkerRoundTrip(t *testing.T) {
	f := newRuntimeFixture(t)

	result := f.run(t, `
		new Promise(function(resolve) {
			var w = new Worker("onmessage = function(e) { postMessage(e.data * 3); };", {name: "tripler"});
			w.onmessage = function(e) { resolve("got " + e.data); };
			w.postMessage(14);
		})
	`)
	assert.Equal(t, "got 42", result)
}

func TestExecuteScript_XMLSerializer(t *testing.T) {
	f := newRuntimeFixture(t)

	result := f.run(t, `
		var d = document.createElement("div");
		d.setAttribute("class", "x");
		d.textContent = "a < b";
		new XMLSerializer().serializeToString(d)
	`)
	assert.Equal(t, `<div class="x">a &lt; b</div>`, result)
}
