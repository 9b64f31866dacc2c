package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kiro-gateway/kiro-gateway/internal/dialect/openaidialect"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/stream"
)

// ChatCompletions handles POST /v1/chat/completions.
func (d *deps) ChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		gwerrors.WriteError(c, err)
		return
	}

	req, err := openaidialect.ParseRequest(body, d.cfg.ModelMap, d.cfg.ToolDescriptionMaxLength)
	if err != nil {
		gwerrors.WriteError(c, err)
		return
	}

	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	log := d.log.WithComponent("openai").WithContext(c.Request.Context())

	if !req.Stream {
		acc := &accumulator{}
		if err := runCompletion(c.Request.Context(), d, req, acc.emit); err != nil {
			gwerrors.WriteError(c, err)
			return
		}
		resp := acc.response(id, req.Model)
		payload, err := openaidialect.NonStreamResponse(id, req.Model, created, resp)
		if err != nil {
			gwerrors.AbortWithInternal(c, "failed to encode response", nil)
			return
		}
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	emit := func(ch stream.Chunk) error {
		switch v := ch.(type) {
		case stream.ContentChunk:
			return writeSSE(c.Writer, openaidialect.ContentDeltaChunk(id, req.Model, created, v.Text, v.First))
		case stream.ToolCallChunk:
			return writeSSE(c.Writer, openaidialect.ToolCallChunk(id, req.Model, created, v.Index, v.Call))
		case stream.FinalChunk:
			if err := writeSSE(c.Writer, openaidialect.FinalChunk(id, req.Model, created, v.Finish)); err != nil {
				return err
			}
			return writeSSE(c.Writer, openaidialect.UsageChunk(v.Usage))
		case stream.TerminatorChunk:
			return writeSSE(c.Writer, openaidialect.DonePrefix)
		}
		return nil
	}

	if err := runCompletion(c.Request.Context(), d, req, emit); err != nil {
		log.LogError(c.Request.Context(), err, "completion stream aborted")
		// Headers are already committed; nothing more can be sent to the
		// client beyond closing the connection, which returning does.
	}
}
