package server

import (
	"context"
	"net/http"

	"github.com/kiro-gateway/kiro-gateway/internal/auth"
	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
	"github.com/kiro-gateway/kiro-gateway/internal/config"
	"github.com/kiro-gateway/kiro-gateway/internal/dialect/upstream"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/logger"
	"github.com/kiro-gateway/kiro-gateway/internal/modelcache"
	"github.com/kiro-gateway/kiro-gateway/internal/stream"
	"github.com/kiro-gateway/kiro-gateway/internal/tokencount"
	"github.com/kiro-gateway/kiro-gateway/internal/upstreamclient"
)

// deps bundles the shared collaborators every handler needs. Built once
// by New (router.go) and attached to the router closures.
type deps struct {
	cfg        *config.Config
	log        *logger.Logger
	upstream   *upstreamclient.Client
	modelCache *modelcache.Cache
	authMgr    *auth.Manager
}

// authExpiringSoon reports whether the cached upstream credential is
// within its refresh threshold of expiry, without forcing a refresh.
func (d *deps) authExpiringSoon() bool {
	if d.authMgr == nil {
		return true
	}
	return d.authMgr.IsExpiringSoon()
}

// runCompletion drives one request through the completion endpoint and
// the Stream Coordinator, retrying the whole HTTP attempt on a
// first-byte timeout up to FirstByteMaxRetries. emit receives every
// Chunk in order; the caller decides whether to translate each one to
// the wire immediately (streaming clients) or accumulate them into a
// single response (non-streaming clients).
func runCompletion(ctx context.Context, d *deps, req *canonical.Request, emit stream.Emit) error {
	env := upstream.Encode(req, "", d.cfg.ProfileARN)

	attempts := d.cfg.FirstByteMaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	co := &stream.Coordinator{
		FirstByteTimeout: d.cfg.FirstByteTimeout,
		Log:              d.log,
		TokenOptions:     tokencount.Options{ApplyClaudeCorrection: d.cfg.ApplyClaudeCorrection},
		ModelCache:       d.modelCache,
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := d.upstream.Complete(ctx, env, req.Stream)
		if err != nil {
			return err
		}
		err = co.Run(ctx, resp.Body, req, emit)
		if err == nil {
			return nil
		}
		if _, ok := err.(*gwerrors.FirstByteTimeout); ok {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

// accumulator is a stream.Emit that assembles a complete canonical.Response
// from the Coordinator's chunk sequence, for non-streaming callers.
type accumulator struct {
	content   string
	toolCalls []canonical.ToolCall
	finish    canonical.FinishReason
	usage     canonical.Usage
}

func (a *accumulator) emit(ch stream.Chunk) error {
	switch v := ch.(type) {
	case stream.ContentChunk:
		a.content += v.Text
	case stream.ToolCallChunk:
		a.toolCalls = append(a.toolCalls, v.Call)
	case stream.FinalChunk:
		a.finish = v.Finish
		a.usage = v.Usage
	case stream.TerminatorChunk:
		// nothing to do; Run has finished
	}
	return nil
}

func (a *accumulator) response(id, model string) canonical.Response {
	return canonical.Response{
		ID:           id,
		Model:        model,
		Content:      a.content,
		ToolCalls:    a.toolCalls,
		FinishReason: a.finish,
		Usage:        a.usage,
	}
}

// flusher is satisfied by gin's ResponseWriter and http.Flusher generally.
type flusher interface {
	Flush()
}

func writeSSE(w http.ResponseWriter, line string) error {
	_, err := w.Write([]byte(line))
	if err != nil {
		return err
	}
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return nil
}
