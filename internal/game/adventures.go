package game

import (
	"context"
	"fmt"
	"log"

	"github.com/qninhdt/ai-adventure/internal/scene"
	"github.com/qninhdt/ai-adventure/internal/validation"
)

// owned loads an adventure and hides it from anyone but its owner
func (e *Engine) owned(ctx context.Context, userID, adventureID string) (*Adventure, error) {
	if err := validation.ValidateAdventureID(adventureID); err != nil {
		return nil, err
	}
	adv, found, err := e.store.GetAdventure(ctx, adventureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load adventure: %w", err)
	}
	if !found || adv.UserID != userID {
		return nil, ErrNotFound
	}
	return adv, nil
}

// ListAdventures returns the user's adventures, newest first.
// An empty status lists every status.
func (e *Engine) ListAdventures(ctx context.Context, userID string, status Status) ([]*Adventure, error) {
	if status != "" {
		if err := validation.ValidateStatus(string(status)); err != nil {
			return nil, err
		}
	}
	adventures, err := e.store.ListAdventures(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list adventures: %w", err)
	}
	return adventures, nil
}

// GetAdventure returns the adventure with its log, inventory and glossary
func (e *Engine) GetAdventure(ctx context.Context, userID, adventureID string) (*AdventureView, error) {
	adv, err := e.owned(ctx, userID, adventureID)
	if err != nil {
		return nil, err
	}

	entries, err := e.store.ListLog(ctx, adv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load log: %w", err)
	}
	items, err := e.store.ListInventory(ctx, adv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	terms, err := e.store.ListGlossary(ctx, adv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load glossary: %w", err)
	}
	event, err := e.activeEvent(ctx, adv)
	if err != nil {
		return nil, err
	}
	bg, err := e.background(ctx, adv)
	if err != nil {
		return nil, err
	}

	return &AdventureView{
		Adventure:   adv,
		Log:         entries,
		Inventory:   items,
		Glossary:    terms,
		ActiveEvent: event,
		Background:  bg,
		Progress: &LevelProgress{
			Level:       adv.Level,
			CurrentXP:   adv.CurrentXP,
			NextLevelXP: adv.NextLevelXP(),
		},
	}, nil
}

// GetLog returns the adventure's log in write order
func (e *Engine) GetLog(ctx context.Context, userID, adventureID string) ([]*LogEntry, error) {
	adv, err := e.owned(ctx, userID, adventureID)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListLog(ctx, adv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load log: %w", err)
	}
	return entries, nil
}

// ActiveEvent returns the pending event entry, or nil when the last turn resolved it
func (e *Engine) ActiveEvent(ctx context.Context, userID, adventureID string) (*LogEntry, error) {
	adv, err := e.owned(ctx, userID, adventureID)
	if err != nil {
		return nil, err
	}
	return e.activeEvent(ctx, adv)
}

func (e *Engine) activeEvent(ctx context.Context, adv *Adventure) (*LogEntry, error) {
	if adv.PendingEventID == "" {
		return nil, nil
	}
	entry, found, err := e.store.GetLogEntry(ctx, adv.PendingEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if !found {
		return nil, nil
	}
	return entry, nil
}

// Background returns the adventure's current scene background, or nil before the first one resolves
func (e *Engine) Background(ctx context.Context, userID, adventureID string) (*scene.Background, error) {
	adv, err := e.owned(ctx, userID, adventureID)
	if err != nil {
		return nil, err
	}
	return e.background(ctx, adv)
}

func (e *Engine) background(ctx context.Context, adv *Adventure) (*scene.Background, error) {
	if adv.CurrentSceneHash == "" {
		return nil, nil
	}
	bg, found, err := e.store.GetBackground(ctx, adv.CurrentSceneHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load background: %w", err)
	}
	if !found {
		return nil, nil
	}
	return bg, nil
}

// UpdateStatus moves an adventure between active, paused and completed
func (e *Engine) UpdateStatus(ctx context.Context, userID, adventureID string, status Status) (*Adventure, error) {
	if err := validation.ValidateStatus(string(status)); err != nil {
		return nil, err
	}

	unlock, err := e.locks.Lock(ctx, adventureID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	adv, err := e.owned(ctx, userID, adventureID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.store.UpdateAdventureStatus(ctx, adv.ID, status, now); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	adv.Status = status
	adv.LastPlayedAt = now
	log.Printf("game: adventure id=%s status=%s", adv.ID, status)
	return adv, nil
}

// DeleteAdventure soft deletes an adventure; afterwards it reads as not found
func (e *Engine) DeleteAdventure(ctx context.Context, userID, adventureID string) error {
	unlock, err := e.locks.Lock(ctx, adventureID)
	if err != nil {
		return err
	}
	defer unlock()

	adv, err := e.owned(ctx, userID, adventureID)
	if err != nil {
		return err
	}
	if err := e.store.SoftDeleteAdventure(ctx, adv.ID, e.now()); err != nil {
		return fmt.Errorf("failed to delete adventure: %w", err)
	}
	log.Printf("game: deleted adventure id=%s", adv.ID)
	return nil
}

// CheckAccess reports ErrNotFound unless the user owns a live adventure
func (e *Engine) CheckAccess(ctx context.Context, userID, adventureID string) error {
	_, err := e.owned(ctx, userID, adventureID)
	return err
}

// ClassPortrait picks a random portrait URL for a class
func (e *Engine) ClassPortrait(classID string) (string, error) {
	class, ok := e.catalog.Class(classID)
	if !ok {
		return "", ErrNotFound
	}
	key := class.RandomPortrait(nil)
	if key == "" {
		return "", nil
	}
	return e.portrait(key), nil
}
