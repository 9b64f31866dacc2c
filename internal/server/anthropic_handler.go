package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kiro-gateway/kiro-gateway/internal/dialect/anthropicdialect"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/stream"
)

// Messages handles POST /v1/messages.
func (d *deps) Messages(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		gwerrors.WriteError(c, err)
		return
	}

	req, err := anthropicdialect.ParseRequest(body, d.cfg.ModelMap, d.cfg.ToolDescriptionMaxLength)
	if err != nil {
		gwerrors.WriteError(c, err)
		return
	}

	id := "msg_" + uuid.NewString()
	log := d.log.WithComponent("anthropic").WithContext(c.Request.Context())

	if !req.Stream {
		acc := &accumulator{}
		if err := runCompletion(c.Request.Context(), d, req, acc.emit); err != nil {
			gwerrors.WriteError(c, err)
			return
		}
		resp := acc.response(id, req.Model)
		payload, err := anthropicdialect.NonStreamResponse(id, req.Model, resp)
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

	if err := writeSSE(c.Writer, anthropicdialect.MessageStartEvent(id, req.Model)); err != nil {
		return
	}

	blockIndex := -1
	blockOpenKind := "" // "text" or "tool_use"
	toolCallIndexToBlock := map[int]int{}

	closeBlock := func() error {
		if blockIndex < 0 || blockOpenKind == "" {
			return nil
		}
		err := writeSSE(c.Writer, anthropicdialect.ContentBlockStopEvent(blockIndex))
		blockOpenKind = ""
		return err
	}

	emit := func(ch stream.Chunk) error {
		switch v := ch.(type) {
		case stream.ContentChunk:
			if blockOpenKind != "text" {
				if err := closeBlock(); err != nil {
					return err
				}
				blockIndex++
				blockOpenKind = "text"
				if err := writeSSE(c.Writer, anthropicdialect.TextBlockStartEvent(blockIndex)); err != nil {
					return err
				}
			}
			return writeSSE(c.Writer, anthropicdialect.TextDeltaEvent(blockIndex, v.Text))

		case stream.ToolCallChunk:
			if err := closeBlock(); err != nil {
				return err
			}
			blockIndex++
			blockOpenKind = "tool_use"
			toolCallIndexToBlock[v.Index] = blockIndex
			if err := writeSSE(c.Writer, anthropicdialect.ToolUseBlockStartEvent(blockIndex, v.Call.ID, v.Call.Name)); err != nil {
				return err
			}
			if err := writeSSE(c.Writer, anthropicdialect.InputJSONDeltaEvent(blockIndex, v.Call.Args)); err != nil {
				return err
			}
			return closeBlock()

		case stream.FinalChunk:
			if err := closeBlock(); err != nil {
				return err
			}
			if err := writeSSE(c.Writer, anthropicdialect.MessageDeltaEvent(v.Finish, v.Usage)); err != nil {
				return err
			}
			return writeSSE(c.Writer, anthropicdialect.MessageStopEvent())

		case stream.TerminatorChunk:
			return nil
		}
		return nil
	}

	if err := runCompletion(c.Request.Context(), d, req, emit); err != nil {
		log.LogError(c.Request.Context(), err, "completion stream aborted")
	}
}
