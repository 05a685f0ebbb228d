package game

import "errors"

var (
	// ErrNotFound covers missing, deleted and foreign adventures
	ErrNotFound = errors.New("adventure not found")
	// ErrGenerationFailed means the narrator failed and the turn should be retried
	ErrGenerationFailed = errors.New("story generation failed, please try again")
	// ErrNotActive is returned when playing a completed adventure
	ErrNotActive = errors.New("adventure is not active")
)
