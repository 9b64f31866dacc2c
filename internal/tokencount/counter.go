// Package tokencount estimates prompt/completion/total token counts for a
// canonical request/response pair. It is deliberately approximate: the
// upstream vendor's own tokenizer is not public, so exact parity with any
// specific provider's tokenizer is out of scope.
package tokencount

import (
	"strings"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

// charsPerToken is the rough English-prose heuristic used when no better
// signal is available: ~4 characters per token.
const charsPerToken = 4.0

// claudeCorrectionFactor nudges the local estimate to better match
// Anthropic's tokenizer, which tends to run a little higher than the
// generic heuristic for the same text. It is only applied when the
// caller opts in (Options.ApplyClaudeCorrection): both the corrected and
// uncorrected paths are legitimate and neither should be assumed.
const claudeCorrectionFactor = 1.15

// Options configures local estimation. MaxInputTokens and
// ContextUsagePercent come from the Model Metadata Cache and the
// upstream's own streamed usage signal respectively.
type Options struct {
	ApplyClaudeCorrection bool
	MaxInputTokens        int
	ContextUsagePercent   float64 // 0 means "not provided by upstream"
	CreditsUsed           float64 // upstream metering figure, passed through verbatim onto the resulting Usage
}

// CountText estimates the token count of a single string.
func CountText(s string, applyClaudeCorrection bool) int {
	if s == "" {
		return 0
	}
	n := float64(len(s)) / charsPerToken
	if applyClaudeCorrection {
		n *= claudeCorrectionFactor
	}
	tokens := int(n)
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// CountMessages estimates the combined token count of canonical history,
// including a small per-message and per-part overhead to approximate role
// and structural tokens real tokenizers spend.
func CountMessages(messages []canonical.Message, applyClaudeCorrection bool) int {
	total := 0
	for _, m := range messages {
		total += 3 // role + turn boundary overhead
		for _, part := range m.Parts {
			switch part.Kind {
			case canonical.PartText:
				total += CountText(part.Text, applyClaudeCorrection)
			case canonical.PartToolUse:
				total += CountText(part.ToolArgsRaw, applyClaudeCorrection) + CountText(part.ToolName, applyClaudeCorrection)
			case canonical.PartToolResult:
				total += CountText(part.ToolResultContent, applyClaudeCorrection)
			case canonical.PartImage:
				total += 85 // flat per-image estimate; real image tokenization is provider-specific
			}
		}
	}
	return total
}

// CountTools estimates the token overhead of the tool definitions attached
// to a request: name, description, and a serialized view of the schema.
func CountTools(tools []canonical.ToolDescriptor, applyClaudeCorrection bool) int {
	total := 0
	for _, t := range tools {
		total += CountText(t.Name, applyClaudeCorrection) + CountText(t.Description, applyClaudeCorrection)
		total += estimateSchemaTokens(t.InputSchema, applyClaudeCorrection)
	}
	return total
}

func estimateSchemaTokens(schema map[string]interface{}, applyClaudeCorrection bool) int {
	if len(schema) == 0 {
		return 0
	}
	var b strings.Builder
	flattenForEstimate(schema, &b)
	return CountText(b.String(), applyClaudeCorrection)
}

func flattenForEstimate(v interface{}, b *strings.Builder) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, vv := range val {
			b.WriteString(k)
			flattenForEstimate(vv, b)
		}
	case []interface{}:
		for _, vv := range val {
			flattenForEstimate(vv, b)
		}
	case string:
		b.WriteString(val)
	}
}

// Calculate resolves final prompt/completion/total token counts for a
// finished response, following the upstream-signal-wins rule: when the
// stream reported a usable context_usage_percent, that figure (scaled by
// the model's max input tokens) is trusted over local estimation for the
// prompt side; completion tokens are always estimated locally since
// upstream doesn't report them directly.
func Calculate(req *canonical.Request, completionText string, opts Options) canonical.Usage {
	completionTokens := CountText(completionText, opts.ApplyClaudeCorrection)

	if opts.ContextUsagePercent > 0 && opts.MaxInputTokens > 0 {
		totalFromAPI := int((opts.ContextUsagePercent / 100.0) * float64(opts.MaxInputTokens))
		if totalFromAPI > 0 {
			promptTokens := totalFromAPI - completionTokens
			if promptTokens < 0 {
				promptTokens = 0
			}
			return canonical.Usage{
				PromptTokens:     promptTokens,
				CompletionTokens: completionTokens,
				TotalTokens:      totalFromAPI,
				CreditsUsed:      opts.CreditsUsed,
			}
		}
	}

	promptTokens := CountMessages(req.Messages, opts.ApplyClaudeCorrection) + CountTools(req.Tools, opts.ApplyClaudeCorrection)
	if req.System != "" {
		promptTokens += CountText(req.System, opts.ApplyClaudeCorrection)
	}

	return canonical.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		CreditsUsed:      opts.CreditsUsed,
	}
}
