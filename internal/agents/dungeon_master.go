package agents

import (
	"context"
	"fmt"
)

// Models selects the model used for each call
type Models struct {
	Narrative string
	Roll      string
	World     string
}

// DungeonMaster narrates turns through an OpenAI-compatible chat API
type DungeonMaster struct {
	client *Client
	models Models
}

// NewDungeonMaster creates a new dungeon master agent
func NewDungeonMaster(client *Client, models Models) *DungeonMaster {
	if models.Narrative == "" {
		models.Narrative = "gpt-4o-mini"
	}
	if models.Roll == "" {
		models.Roll = models.Narrative
	}
	if models.World == "" {
		models.World = models.Narrative
	}
	return &DungeonMaster{client: client, models: models}
}

func (d *DungeonMaster) complete(ctx context.Context, model, name string, schema map[string]interface{}, maxTokens int, temperature float64, messages ...Message) (string, error) {
	resp, err := d.client.CreateCompletion(ctx, &CompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		ResponseFormat: &ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &JSONSchema{Name: name, Schema: schema},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content()
}

// CheckRoll asks whether the action needs a d20 roll
func (d *DungeonMaster) CheckRoll(ctx context.Context, p RollPrompt) (*RollCheck, error) {
	systemPrompt, userPrompt, err := RenderRollPrompts(p)
	if err != nil {
		return nil, err
	}

	content, err := d.complete(ctx, d.models.Roll, "roll_check", RollSchema(), 100, 0.2,
		Message{Role: "system", Content: systemPrompt},
		Message{Role: "user", Content: userPrompt},
	)
	if err != nil {
		return nil, fmt.Errorf("roll check failed: %w", err)
	}
	return ParseRollCheck(content)
}

// Narrate produces the outcome of a turn
func (d *DungeonMaster) Narrate(ctx context.Context, p *TurnPrompt) (*DMResponse, error) {
	systemPrompt, userPrompt, err := RenderTurnPrompts(p)
	if err != nil {
		return nil, err
	}

	content, err := d.complete(ctx, d.models.Narrative, "dnd_dm_response", DMSchema(p.EventsEnabled), 800, 0.8,
		Message{Role: "system", Content: systemPrompt},
		Message{Role: "user", Content: userPrompt},
	)
	if err != nil {
		return nil, fmt.Errorf("narration failed: %w", err)
	}
	return ParseDMResponse(content)
}

// CreateWorld invents the title and opening setting of a new adventure
func (d *DungeonMaster) CreateWorld(ctx context.Context, class string) (*WorldSetup, error) {
	systemPrompt, err := RenderWorldPrompt(class)
	if err != nil {
		return nil, err
	}

	content, err := d.complete(ctx, d.models.World, "adventure_setup", WorldSchema(), 400, 0.9,
		Message{Role: "system", Content: systemPrompt},
	)
	if err != nil {
		return nil, fmt.Errorf("world creation failed: %w", err)
	}
	return ParseWorldSetup(content)
}

// Painter generates scene images through the images API
type Painter struct {
	client *Client
}

// NewPainter creates a new painter
func NewPainter(client *Client) *Painter {
	return &Painter{client: client}
}

// GenerateImage returns PNG bytes for a prompt
func (p *Painter) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	data, err := p.client.CreateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	return data, nil
}
