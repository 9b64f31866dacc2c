package toolcall

import (
	"testing"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

func TestReconcileKeepsNativeAndAppendsDistinctBracketCalls(t *testing.T) {
	native := []canonical.ToolCall{
		{ID: "t1", Name: "search", Args: `{"query":"weather"}`, Native: true},
	}
	text := `Let me also check that. [lookup({"city": "NYC"})] done.`

	out := Reconcile(native, text)
	if len(out) != 2 {
		t.Fatalf("got %d calls, want 2: %+v", len(out), out)
	}
	if out[0].Name != "search" || !out[0].Native {
		t.Fatalf("out[0] = %+v, want native search call first", out[0])
	}
	if out[1].Name != "lookup" || out[1].Native {
		t.Fatalf("out[1] = %+v, want non-native lookup call second", out[1])
	}
}

func TestReconcileDedupsBracketEchoOfNativeCallByCanonicalizedArgs(t *testing.T) {
	native := []canonical.ToolCall{
		{ID: "t1", Name: "search", Args: `{"query":"weather","limit":3}`, Native: true},
	}
	// Same name and semantically identical args, but different key order
	// and spacing — must still collapse to the native call.
	text := `[search({"limit": 3, "query": "weather"})]`

	out := Reconcile(native, text)
	if len(out) != 1 {
		t.Fatalf("got %d calls, want 1 (bracket echo should dedup against native): %+v", len(out), out)
	}
	if !out[0].Native {
		t.Fatalf("surviving call = %+v, want the native one to win", out[0])
	}
}

func TestReconcileDedupsDuplicateBracketCalls(t *testing.T) {
	text := `[search({"query": "a"})] some text [search({"query":   "a"})]`

	out := Reconcile(nil, text)
	if len(out) != 1 {
		t.Fatalf("got %d calls, want 1: %+v", len(out), out)
	}
}

func TestReconcileKeepsBracketCallsWithDifferentArgsDistinct(t *testing.T) {
	text := `[search({"query": "a"})] [search({"query": "b"})]`

	out := Reconcile(nil, text)
	if len(out) != 2 {
		t.Fatalf("got %d calls, want 2 (different args should not dedup): %+v", len(out), out)
	}
}

func TestReconcilePreservesOrderNativeBeforeBracket(t *testing.T) {
	native := []canonical.ToolCall{
		{ID: "t1", Name: "first", Args: `{}`, Native: true},
		{ID: "t2", Name: "second", Args: `{}`, Native: true},
	}
	text := `[third({})] [fourth({})]`

	out := Reconcile(native, text)
	want := []string{"first", "second", "third", "fourth"}
	if len(out) != len(want) {
		t.Fatalf("got %d calls, want %d: %+v", len(out), len(want), out)
	}
	for i, name := range want {
		if out[i].Name != name {
			t.Fatalf("out[%d].Name = %q, want %q", i, out[i].Name, name)
		}
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	native := []canonical.ToolCall{
		{ID: "t1", Name: "search", Args: `{"query":"weather"}`, Native: true},
	}
	text := `[search({"query": "weather"})] [lookup({"city": "NYC", "zip": "10001"})]`

	first := Reconcile(native, text)

	// Feed the reconciled output back through as the "native" set, with no
	// further text to extract from: reconcile(reconcile(x)) == reconcile(x).
	second := Reconcile(first, "")

	if len(second) != len(first) {
		t.Fatalf("second pass produced %d calls, want %d (same as first pass): %+v vs %+v", len(second), len(first), second, first)
	}
	for i := range first {
		if second[i].Name != first[i].Name || second[i].Args != first[i].Args {
			t.Fatalf("second[%d] = %+v, want %+v", i, second[i], first[i])
		}
	}
}

func TestReconcileRepairsMalformedBracketArgs(t *testing.T) {
	// Trailing comma is invalid JSON but repairable.
	text := `[search({"query": "weather",})]`

	out := Reconcile(nil, text)
	if len(out) != 1 {
		t.Fatalf("got %d calls, want 1: %+v", len(out), out)
	}
	if out[0].Args == "" {
		t.Fatal("expected non-empty repaired args")
	}
}

func TestReconcileEmptyInputsProduceNoCalls(t *testing.T) {
	out := Reconcile(nil, "plain text with no tool calls")
	if len(out) != 0 {
		t.Fatalf("got %d calls, want 0: %+v", len(out), out)
	}
}
