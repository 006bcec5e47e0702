package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"dashbot-backend/internal/models"
	"dashbot-backend/internal/stream"
)

// Gemini adapts the Gemini API into the engine's ordered fragment feed.
type Gemini struct {
	client       *genai.Client
	defaultModel string
	rateChan     chan struct{} // Token bucket
}

func NewGemini(apiKey, defaultModel string, concurrentReqs int) (*Gemini, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &Gemini{
		client:       client,
		defaultModel: defaultModel,
		rateChan:     rateChan,
	}, nil
}

func (g *Gemini) Close() {
	g.client.Close()
}

func (g *Gemini) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *Gemini) releaseRate() {
	g.rateChan <- struct{}{}
}

// Stream sends prompt against the given history and returns the ordered
// fragment feed for the exchange: text deltas while tokens arrive, then one
// text-final snapshot. A transport failure is delivered as the terminal event
// with a human-readable message; the channel always closes.
func (g *Gemini) Stream(ctx context.Context, modelName string, history []models.ChatMessage, prompt string) (<-chan stream.Event, error) {
	if err := g.acquireRate(ctx); err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = g.defaultModel
	}
	model := g.client.GenerativeModel(modelName)
	model.SetTemperature(0.3)

	cs := model.StartChat()
	cs.History = toContents(history)

	ch := make(chan stream.Event, 8)
	go func() {
		defer close(ch)
		defer g.releaseRate()

		var raw strings.Builder
		iter := cs.SendMessageStream(ctx, genai.Text(prompt))
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				ch <- stream.Event{Fragment: stream.Fragment{
					Kind:  stream.KindTextFinal,
					Text:  raw.String(),
					State: stream.StateDone,
				}}
				return
			}
			if err != nil {
				ch <- stream.Event{Err: fmt.Errorf("%s", friendlyMessage(err))}
				return
			}

			text := extractText(resp)
			if text == "" {
				continue
			}
			raw.WriteString(text)
			ch <- stream.Event{Fragment: stream.Fragment{
				Kind:  stream.KindTextDelta,
				Text:  text,
				State: stream.StateStreaming,
			}}
		}
	}()

	return ch, nil
}

// Title asks the model for a short conversation title from the first message.
func (g *Gemini) Title(ctx context.Context, text string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	model := g.client.GenerativeModel(g.defaultModel)
	prompt := "Return ONLY a conversation title under 6 words, no quotes, no punctuation at the end, for a chat that starts with:\n\n" + text

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	title := strings.TrimSpace(extractText(resp))
	title = strings.Trim(title, "\"'")
	if title == "" {
		return "", fmt.Errorf("Gemini returned empty title")
	}
	return title, nil
}

func toContents(history []models.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
