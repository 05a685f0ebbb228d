package scene

import (
	"fmt"
	"strings"
)

const basePrompt = "Fantasy D&D environment: %s. " +
	"Cinematic, atmospheric digital art style. " +
	"Detailed environment with rich colors and mood lighting. " +
	"No characters or people, focus on the setting and atmosphere. " +
	"High fantasy aesthetic, painterly style."

// BuildImagePrompt renders the image prompt for a categorized description.
// The enhancer is keyed on the category without its atmosphere suffix.
func BuildImagePrompt(category, description string) string {
	prompt := fmt.Sprintf(basePrompt, strings.TrimSpace(description))

	parts := strings.SplitN(category, "_", 3)
	if len(parts) >= 2 {
		if enhancement, ok := enhancers[parts[0]+"_"+parts[1]]; ok {
			return prompt + " " + enhancement + "."
		}
	}
	return prompt
}
