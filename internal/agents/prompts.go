package agents

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

type turnView struct {
	*TurnPrompt
	StatsJSON     string
	InventoryJSON string
}

// RenderTurnPrompts renders the system and user prompts of a turn
func RenderTurnPrompts(p *TurnPrompt) (systemPrompt, userPrompt string, err error) {
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return "", "", err
	}
	inventory := p.Inventory
	if inventory == nil {
		inventory = []InventoryLine{}
	}
	inv, err := json.Marshal(inventory)
	if err != nil {
		return "", "", err
	}

	systemPrompt, err = render("narrate_system.tmpl", p)
	if err != nil {
		return "", "", err
	}
	userPrompt, err = render("narrate_user.tmpl", turnView{TurnPrompt: p, StatsJSON: string(stats), InventoryJSON: string(inv)})
	if err != nil {
		return "", "", err
	}
	return systemPrompt, userPrompt, nil
}

// RenderRollPrompts renders the roll check prompts
func RenderRollPrompts(p RollPrompt) (systemPrompt, userPrompt string, err error) {
	systemPrompt, err = render("roll_system.tmpl", nil)
	if err != nil {
		return "", "", err
	}
	user, err := json.Marshal(p)
	if err != nil {
		return "", "", err
	}
	return systemPrompt, string(user), nil
}

// RenderWorldPrompt renders the world creation prompt
func RenderWorldPrompt(class string) (string, error) {
	return render("world_system.tmpl", struct{ Class string }{Class: class})
}
