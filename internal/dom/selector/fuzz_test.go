// internal/dom/selector/fuzz_test.go
package selector

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/umbra/internal/dom"
)

// FuzzParse throws arbitrary input at the parser. Whatever comes in, Parse
// must either return a usable selector or the Invalid selector plus an
// error; String must render both without panicking.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"div",
		"*",
		"#main",
		".btn.primary",
		"div.foo#bar[role=nav]:empty",
		"ul > li + li ~ li",
		"[data-x^='pre'][data-y$=\"post\"]",
		"a b > c",
		"div, p",
		"::before",
		":nth-child(2)",
		"[unterminated",
		"   ",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Parse(%q) panicked: %v", input, r)
			}
		}()

		sel, err := Parse(input)
		if err != nil {
			require.Same(t, Invalid, sel)
		} else {
			require.NotNil(t, sel)
			require.NotEqual(t, KindInvalid, sel.Kind)
		}
		_ = sel.String()
	})
}

// FuzzQuery derives a selector from fuzzed bytes and runs it against a
// small fixed tree. The goal is survival without panicking; invalid
// selectors must simply yield no matches.
func FuzzQuery(f *testing.F) {
	f.Add([]byte("div > .foo"))
	f.Add([]byte("#app [lang|=en]"))

	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)
		input, err := fuzzConsumer.GetString()
		if err != nil {
			return
		}

		doc := dom.NewDocument(nil)
		root := doc.AsNode()
		div := doc.CreateElement("div")
		div.SetAttribute("id", "app")
		div.SetAttribute("class", "foo bar")
		if _, err := root.AppendChild(div); err != nil {
			t.Fatalf("building fixture: %v", err)
		}
		span := doc.CreateElement("span")
		span.SetAttribute("lang", "en-US")
		if _, err := div.AppendChild(span); err != nil {
			t.Fatalf("building fixture: %v", err)
		}

		defer func() {
			if r := recover(); r != nil {
				t.Errorf("query for %q panicked: %v", input, r)
			}
		}()

		sel, parseErr := Parse(input)
		found, queryErr := Query(root, sel, All)
		require.NoError(t, queryErr)
		if parseErr != nil {
			require.Empty(t, found)
		}
		for _, n := range found {
			require.True(t, Matches(n, sel))
		}
	})
}
