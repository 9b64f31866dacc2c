// Package stream turns an open upstream event-stream response into an
// ordered sequence of dialect-independent chunks: content deltas first,
// then reconciled tool calls, then one final chunk, then a terminator (a
// stream that closes before any bytes yields the terminator alone).
// Dialect-specific encoding of each Chunk happens one layer up, in the
// HTTP handlers, so this package knows nothing of OpenAI or Anthropic wire
// shapes.
package stream

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
	"github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/eventstream"
	"github.com/kiro-gateway/kiro-gateway/internal/logger"
	"github.com/kiro-gateway/kiro-gateway/internal/modelcache"
	"github.com/kiro-gateway/kiro-gateway/internal/toolcall"
	"github.com/kiro-gateway/kiro-gateway/internal/tokencount"
)

// Chunk is the sealed set of events a Coordinator emits, in order:
// zero or more ContentChunk, zero or more ToolCallChunk, exactly one
// FinalChunk, exactly one TerminatorChunk. When the upstream body closes
// before delivering any bytes, only the TerminatorChunk is emitted.
type Chunk interface{ isChunk() }

type ContentChunk struct {
	Text  string
	First bool
}

type ToolCallChunk struct {
	Index int
	Call  canonical.ToolCall
}

type FinalChunk struct {
	Finish canonical.FinishReason
	Usage  canonical.Usage
}

type TerminatorChunk struct{}

func (ContentChunk) isChunk()    {}
func (ToolCallChunk) isChunk()   {}
func (FinalChunk) isChunk()      {}
func (TerminatorChunk) isChunk() {}

// Emit is called once per Chunk, in emission order. Returning an error
// aborts the stream (e.g. the downstream client disconnected).
type Emit func(Chunk) error

// Coordinator drives one streaming upstream response to completion.
type Coordinator struct {
	FirstByteTimeout time.Duration
	Log              *logger.Logger
	TokenOptions     tokencount.Options
	ModelCache       *modelcache.Cache
}

// Run consumes body (an open, successful upstream response), feeding it
// through an event-stream parser and emitting Chunks via emit. It always
// closes body on return. A FirstByteTimeout error means the caller should
// retry the whole request (a fresh HTTP attempt, not just this call).
func (co *Coordinator) Run(ctx context.Context, body io.ReadCloser, req *canonical.Request, emit Emit) error {
	defer body.Close()

	type readOutcome struct {
		n   int
		err error
	}

	buf := make([]byte, 32*1024)
	firstRead := make(chan readOutcome, 1)
	go func() {
		n, err := body.Read(buf)
		firstRead <- readOutcome{n, err}
	}()

	var first readOutcome
	select {
	case first = <-firstRead:
	case <-time.After(co.firstByteTimeout()):
		return &errors.FirstByteTimeout{}
	case <-ctx.Done():
		return ctx.Err()
	}

	if first.n == 0 && first.err != nil {
		// Stream closed before any bytes at all: emit a terminator and end.
		return emit(TerminatorChunk{})
	}

	parser := eventstream.NewParser(eventstream.NopSink)

	var accumulatedText strings.Builder
	var nativeCalls []canonical.ToolCall
	toolArgBuilders := map[string]*strings.Builder{}

	contentUsagePercent := 0.0
	meteringCredits := 0.0
	firstContentSeen := false

	processEvents := func(events []eventstream.Event) error {
		for _, ev := range events {
			switch ev.Kind {
			case eventstream.EventContent:
				if ev.Content == "" {
					continue
				}
				accumulatedText.WriteString(ev.Content)
				isFirst := !firstContentSeen
				firstContentSeen = true
				if ev.ContextUsagePercent > 0 {
					contentUsagePercent = ev.ContextUsagePercent
				}
				if ev.MeteringCredits > 0 {
					meteringCredits = ev.MeteringCredits
				}
				if err := emit(ContentChunk{Text: ev.Content, First: isFirst}); err != nil {
					return err
				}

			case eventstream.EventToolCallFragment:
				frag := ev.ToolFragment
				b, ok := toolArgBuilders[frag.ToolUseID]
				if !ok {
					b = &strings.Builder{}
					toolArgBuilders[frag.ToolUseID] = b
				}
				b.WriteString(frag.ArgsChunk)
				if ev.ContextUsagePercent > 0 {
					contentUsagePercent = ev.ContextUsagePercent
				}
				if ev.MeteringCredits > 0 {
					meteringCredits = ev.MeteringCredits
				}
				if frag.Stop {
					nativeCalls = append(nativeCalls, canonical.ToolCall{
						ID:     frag.ToolUseID,
						Name:   frag.Name,
						Args:   toolcall.FinalizeArgs(b.String()),
						Native: true,
					})
				}

			case eventstream.EventMetadata:
				if ev.ContextUsagePercent > 0 {
					contentUsagePercent = ev.ContextUsagePercent
				}
				if ev.MeteringCredits > 0 {
					meteringCredits = ev.MeteringCredits
				}

			case eventstream.EventException:
				if co.Log != nil {
					co.Log.WithComponent("stream").WithContext(ctx).Warn(
						"upstream exception frame mid-stream",
						"type", ev.ExceptionType, "message", ev.ExceptionMessage,
					)
				}
			}
		}
		return nil
	}

	events, parseErrs := parser.Feed(buf[:first.n])
	if err := processEvents(events); err != nil {
		return err
	}
	co.logParseErrs(ctx, parseErrs)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			events, parseErrs := parser.Feed(buf[:n])
			if perr := processEvents(events); perr != nil {
				return perr
			}
			co.logParseErrs(ctx, parseErrs)
		}
		if err != nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	toolCalls := toolcall.Reconcile(nativeCalls, accumulatedText.String())
	for i, tc := range toolCalls {
		if err := emit(ToolCallChunk{Index: i, Call: tc}); err != nil {
			return err
		}
	}

	finish := canonical.FinishStop
	if len(toolCalls) > 0 {
		finish = canonical.FinishToolCalls
	}

	opts := co.TokenOptions
	opts.ContextUsagePercent = contentUsagePercent
	opts.CreditsUsed = meteringCredits
	if co.ModelCache != nil {
		opts.MaxInputTokens = co.ModelCache.GetMaxInputTokens(ctx, req.Model)
	}
	usage := tokencount.Calculate(req, accumulatedText.String(), opts)

	if err := emit(FinalChunk{Finish: finish, Usage: usage}); err != nil {
		return err
	}
	return emit(TerminatorChunk{})
}

func (co *Coordinator) firstByteTimeout() time.Duration {
	if co.FirstByteTimeout <= 0 {
		return 15 * time.Second
	}
	return co.FirstByteTimeout
}

func (co *Coordinator) logParseErrs(ctx context.Context, errs []error) {
	if co.Log == nil {
		return
	}
	for _, e := range errs {
		co.Log.WithComponent("stream").WithContext(ctx).Warn("skipped malformed event-stream frame", "error", e)
	}
}
