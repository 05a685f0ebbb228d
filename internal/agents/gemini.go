package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiMaster narrates turns with Gemini structured output
type GeminiMaster struct {
	client *genai.Client
	model  string
	tries  uint
}

// NewGeminiMaster creates a Gemini backed dungeon master. tries is the total
// number of attempts per call; zero means two.
func NewGeminiMaster(ctx context.Context, apiKey, model string, tries uint) (*GeminiMaster, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if tries == 0 {
		tries = 2
	}
	return &GeminiMaster{client: client, model: model, tries: tries}, nil
}

// Close releases the underlying client
func (g *GeminiMaster) Close() error {
	return g.client.Close()
}

func (g *GeminiMaster) generate(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}, maxTokens int32, temperature float32) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = toGenaiSchema(schema)
	model.SetMaxOutputTokens(maxTokens)
	model.SetTemperature(temperature)

	resp, err := retryGenerate(ctx, g.tries, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(userPrompt))
	})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// geminiTransient reports whether a failed call is worth repeating:
// 429 and 5xx answers, or a network error with no API status at all.
func geminiTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return true
}

// retryGenerate runs call up to tries times, backing off between transient failures
func retryGenerate(ctx context.Context, tries uint, call func(context.Context) (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	operation := func() (*genai.GenerateContentResponse, error) {
		resp, err := call(ctx)
		if err != nil {
			if ctx.Err() != nil || !geminiTransient(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
	)
}

// CheckRoll asks whether the action needs a d20 roll
func (g *GeminiMaster) CheckRoll(ctx context.Context, p RollPrompt) (*RollCheck, error) {
	systemPrompt, userPrompt, err := RenderRollPrompts(p)
	if err != nil {
		return nil, err
	}
	content, err := g.generate(ctx, systemPrompt, userPrompt, RollSchema(), 100, 0.2)
	if err != nil {
		return nil, fmt.Errorf("roll check failed: %w", err)
	}
	return ParseRollCheck(content)
}

// Narrate produces the outcome of a turn
func (g *GeminiMaster) Narrate(ctx context.Context, p *TurnPrompt) (*DMResponse, error) {
	systemPrompt, userPrompt, err := RenderTurnPrompts(p)
	if err != nil {
		return nil, err
	}
	content, err := g.generate(ctx, systemPrompt, userPrompt, DMSchema(p.EventsEnabled), 800, 0.8)
	if err != nil {
		return nil, fmt.Errorf("narration failed: %w", err)
	}
	return ParseDMResponse(content)
}

// CreateWorld invents the title and opening setting of a new adventure
func (g *GeminiMaster) CreateWorld(ctx context.Context, class string) (*WorldSetup, error) {
	systemPrompt, err := RenderWorldPrompt(class)
	if err != nil {
		return nil, err
	}
	content, err := g.generate(ctx, systemPrompt, "Create the adventure.", WorldSchema(), 400, 0.9)
	if err != nil {
		return nil, fmt.Errorf("world creation failed: %w", err)
	}
	return ParseWorldSetup(content)
}

var genaiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
}

// toGenaiSchema converts a JSON schema map into the Gemini schema type
func toGenaiSchema(m map[string]interface{}) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genaiTypes[t]
	}
	if props, ok := m["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				s.Properties[name] = toGenaiSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]interface{}); ok {
		s.Items = toGenaiSchema(items)
	}
	if req, ok := m["required"].([]interface{}); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if enum, ok := m["enum"].([]interface{}); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				s.Enum = append(s.Enum, v)
			}
		}
		if len(s.Enum) > 0 {
			s.Format = "enum"
		}
	}
	return s
}
