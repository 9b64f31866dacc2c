package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type openAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

// knownModels is the static list GET /v1/models always returns. The Model
// Metadata Cache is not consulted, so models learned from a live
// ListAvailableModels call do not appear here, and the request never
// blocks on a refresh.
var knownModels = []string{
	"claude-sonnet-4-5-20250929",
	"claude-opus-4-1-20250805",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// ListModels handles GET /v1/models.
func (d *deps) ListModels(c *gin.Context) {
	data := make([]openAIModel, 0, len(knownModels))
	for _, id := range knownModels {
		data = append(data, openAIModel{ID: id, Object: "model", OwnedBy: "anthropic"})
	}
	c.JSON(http.StatusOK, modelList{Object: "list", Data: data})
}
