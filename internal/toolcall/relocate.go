package toolcall

import (
	"fmt"
	"strings"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

// RelocateOversizedDescriptions moves any tool description longer than
// maxLength into the system prompt under a "## Tool Documentation: {name}"
// header, replacing the descriptor's own description with a short stub that
// points back at it. Both dialects call this during inbound translation so
// neither ever sends an oversized description upstream.
func RelocateOversizedDescriptions(tools []canonical.ToolDescriptor, systemPrompt string, maxLength int) ([]canonical.ToolDescriptor, string) {
	if maxLength <= 0 {
		return tools, systemPrompt
	}

	out := make([]canonical.ToolDescriptor, len(tools))
	var relocated strings.Builder
	for i, t := range tools {
		out[i] = t
		if len(t.Description) <= maxLength {
			continue
		}
		relocated.WriteString(fmt.Sprintf("\n\n## Tool Documentation: %s\n\n%s", t.Name, t.Description))
		out[i].Description = fmt.Sprintf("See system prompt under 'Tool Documentation: %s'", t.Name)
	}

	if relocated.Len() == 0 {
		return out, systemPrompt
	}
	return out, systemPrompt + relocated.String()
}
