package eventstream

import "testing"

func TestParserFeedSingleShot(t *testing.T) {
	raw := buildFrame(t, map[string]string{
		":event-type":   "assistantResponseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`{"content":"hi there"}`))

	p := NewParser(nil)
	events, errs := p.Feed(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errs: %v", errs)
	}
	if len(events) != 1 || events[0].Kind != EventContent || events[0].Content != "hi there" {
		t.Fatalf("events = %+v", events)
	}
}

// TestParserFeedSplitting verifies the parser produces the same events
// regardless of how the underlying byte stream is chunked, including
// splits in the middle of the length prelude itself.
func TestParserFeedSplitting(t *testing.T) {
	frame1 := buildFrame(t, map[string]string{
		":event-type":   "assistantResponseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`{"content":"abc"}`))
	frame2 := buildFrame(t, map[string]string{
		":event-type":   "assistantResponseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`{"content":"def"}`))

	full := append(append([]byte{}, frame1...), frame2...)

	for split := 0; split <= len(full); split++ {
		p := NewParser(nil)
		var all []Event
		ev1, errs1 := p.Feed(full[:split])
		if len(errs1) != 0 {
			t.Fatalf("split=%d unexpected errs: %v", split, errs1)
		}
		all = append(all, ev1...)
		ev2, errs2 := p.Feed(full[split:])
		if len(errs2) != 0 {
			t.Fatalf("split=%d unexpected errs: %v", split, errs2)
		}
		all = append(all, ev2...)

		if len(all) != 2 {
			t.Fatalf("split=%d got %d events, want 2", split, len(all))
		}
		if all[0].Content != "abc" || all[1].Content != "def" {
			t.Fatalf("split=%d events = %+v", split, all)
		}
	}
}

func TestParserToolUseFragmentsAccumulate(t *testing.T) {
	f1 := buildFrame(t, map[string]string{
		":event-type":   "toolUseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`{"toolUseId":"t1","name":"search","input":"{\"q\":","stop":false}`))
	f2 := buildFrame(t, map[string]string{
		":event-type":   "toolUseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`{"toolUseId":"t1","name":"search","input":"\"go\"}","stop":true}`))

	p := NewParser(nil)
	events, errs := p.Feed(append(append([]byte{}, f1...), f2...))
	if len(errs) != 0 {
		t.Fatalf("unexpected errs: %v", errs)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !events[1].ToolFragment.Stop {
		t.Fatalf("expected final fragment Stop=true")
	}
	if got := p.AccumulatedToolArgs("t1"); got != "" {
		t.Fatalf("expected accumulated args cleared after Stop, got %q", got)
	}
}

func TestParserSkipsMalformedFrameWithoutWedging(t *testing.T) {
	bad := buildFrame(t, map[string]string{
		":event-type":   "assistantResponseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`not json`))
	good := buildFrame(t, map[string]string{
		":event-type":   "assistantResponseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`{"content":"ok"}`))

	p := NewParser(nil)
	events, errs := p.Feed(append(append([]byte{}, bad...), good...))
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want exactly one", errs)
	}
	if len(events) != 1 || events[0].Content != "ok" {
		t.Fatalf("events = %+v", events)
	}
}
