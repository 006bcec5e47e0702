package stream

import (
	"strings"

	"dashbot-backend/internal/models"
)

// Result is the derived conversation view: finalized history, the at-most-one
// in-flight streaming entry, and the at-most-one active reasoning trace. A
// message is either in History or in Streaming, never both.
type Result struct {
	History     []models.ChatMessage
	Streaming   *models.ChatMessage
	StreamingID string
	Reasoning   *models.ReasoningTrace
}

// Process re-derives the conversation view from the full transport message
// list. It is a pure function of its inputs (the timestamp registry only
// memoizes creation times), so processing the same list twice yields the same
// view; out-of-order completion between messages cannot corrupt ordering
// because the list itself is the order of truth.
func Process(msgs []Message, ts *Timestamps) Result {
	var res Result

	for i, msg := range msgs {
		if msg.Role == "system" {
			continue
		}
		last := i == len(msgs)-1

		// Reasoning narration replaces any previously active trace; only the
		// latest tool's narration is ever shown, and never for an earlier
		// message once a newer one exists.
		reasoning := joinReasoning(msg.Parts)
		if reasoning != "" {
			res.Reasoning = &models.ReasoningTrace{
				ID:        msg.ID,
				Content:   reasoning,
				Timestamp: ts.At(msg.ID),
			}
		} else if !last || msg.Role == "user" {
			res.Reasoning = nil
		}

		switch msg.Role {
		case "user":
			content := strings.TrimSpace(AggregateText(msg.Parts).Raw)
			if content == "" {
				continue
			}
			res.History = append(res.History, models.ChatMessage{
				ID:        msg.ID,
				Role:      "user",
				Content:   content,
				Timestamp: ts.At(msg.ID),
				Variant:   models.VariantDefault,
			})

		case "assistant":
			agg := AggregateText(msg.Parts)
			blocks := chartParts(msg.Parts)

			if agg.Streaming {
				entry := models.ChatMessage{
					ID:        msg.ID,
					Role:      "assistant",
					Content:   StripMarkers(agg.Content),
					Timestamp: ts.At(msg.ID),
					Variant:   variantFor(blocks),
					Blocks:    blocks,
				}
				res.Streaming = &entry
				res.StreamingID = msg.ID
				continue
			}

			clean, extracted := ExtractBlocks(agg.Raw)
			// Out-of-band blocks are never dropped in favor of extracted ones.
			blocks = append(blocks, extracted...)

			if res.StreamingID == msg.ID {
				res.Streaming = nil
				res.StreamingID = ""
			}

			if clean == "" && len(blocks) == 0 {
				continue
			}

			res.History = append(res.History, models.ChatMessage{
				ID:        msg.ID,
				Role:      "assistant",
				Content:   clean,
				Timestamp: ts.At(msg.ID),
				Variant:   variantFor(blocks),
				Blocks:    blocks,
			})
			res.Streaming = nil
			res.StreamingID = ""
		}
	}

	return res
}

func joinReasoning(parts []Fragment) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Kind == KindReasoning {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func chartParts(parts []Fragment) []models.ChartBlock {
	var blocks []models.ChartBlock
	for _, p := range parts {
		if p.Kind == KindChart && p.Chart != nil {
			blocks = append(blocks, *p.Chart)
		}
	}
	return blocks
}

func variantFor(blocks []models.ChartBlock) string {
	if len(blocks) > 0 {
		return models.VariantStructured
	}
	return models.VariantDefault
}
