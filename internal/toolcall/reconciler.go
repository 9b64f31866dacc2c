// Package toolcall merges native upstream tool-use frames with
// bracket-encoded tool calls recovered from plain assistant text into one
// deduplicated, ordered list.
package toolcall

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
	"github.com/kiro-gateway/kiro-gateway/internal/eventstream"
)

// Reconcile merges native tool calls (already resolved from event-stream
// tool-use frames) with bracket-encoded calls extracted from the final
// accumulated text, in that order, and removes duplicates.
//
// The dedup key is (name, canonicalized args JSON): two calls with the
// same name and semantically identical arguments collapse to one entry,
// keeping the first occurrence — which, because natives are appended
// first, means a native tool-use call always wins over an equivalent
// bracket-encoded echo of the same call.
func Reconcile(native []canonical.ToolCall, accumulatedText string) []canonical.ToolCall {
	bracketCalls := eventstream.ExtractBracketToolCalls(accumulatedText)

	seen := make(map[string]struct{}, len(native)+len(bracketCalls))
	var out []canonical.ToolCall

	for _, call := range native {
		key := dedupKey(call.Name, call.Args)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, call)
	}

	for _, bc := range bracketCalls {
		key := dedupKey(bc.Name, bc.ArgsRaw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, canonical.ToolCall{
			Name:   bc.Name,
			Args:   FinalizeArgs(bc.ArgsRaw),
			Native: false,
		})
	}

	return out
}

// FinalizeArgs validates that a tool call's accumulated argument buffer
// parses as JSON. If it doesn't, it attempts a best-effort repair; if even
// that fails, the raw text is kept as-is (the caller gets a string that
// may not be valid JSON, by design — we never invent argument values).
func FinalizeArgs(raw string) string {
	if json.Valid([]byte(raw)) {
		return raw
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return raw
	}
	if !json.Valid([]byte(repaired)) {
		return raw
	}
	return repaired
}

// dedupKey canonicalizes args (re-marshaling through interface{} sorts
// object keys) so that two byte-different but semantically equal JSON
// payloads collapse to the same key. If args can't be parsed at all even
// after repair, the raw text is used verbatim as part of the key.
func dedupKey(name, args string) string {
	canon := canonicalizeJSON(args)
	return name + "\x00" + canon
}

func canonicalizeJSON(raw string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return raw
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return raw
		}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return string(out)
}
