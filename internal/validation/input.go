package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxActionLength bounds a single player action
	MaxActionLength = 1000
	// MaxTitleLength bounds adventure titles
	MaxTitleLength = 120
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateAdventureID validates adventure ID format
func ValidateAdventureID(id string) error {
	if len(id) == 0 || len(id) > 64 {
		return invalid(ErrInvalidInput, "adventure ID must be 1-64 characters")
	}

	// Allow alphanumeric, hyphens, underscores
	if !idPattern.MatchString(id) {
		return invalid(ErrInvalidInput, "adventure ID can only contain alphanumeric characters, hyphens, and underscores")
	}

	return nil
}

// ValidateAction validates a player action and returns it trimmed
func ValidateAction(action string) (string, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return "", invalid(ErrInvalidInput, "action must not be empty")
	}
	if utf8.RuneCountInString(action) > MaxActionLength {
		return "", invalid(ErrInvalidInput, "action must be at most %d characters", MaxActionLength)
	}
	return action, nil
}

// ValidateStatus validates an adventure status
func ValidateStatus(status string) error {
	switch status {
	case "active", "paused", "completed":
		return nil
	}
	return invalid(ErrInvalidInput, "status must be 'active', 'paused' or 'completed'")
}

// ValidateTitle validates an optional player-chosen title
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return invalid(ErrInvalidInput, "title must be at most %d characters", MaxTitleLength)
	}
	return nil
}
