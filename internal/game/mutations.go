package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qninhdt/ai-adventure/internal/agents"
	"github.com/qninhdt/ai-adventure/internal/character"
)

// InventoryPlan is the set of writes that reconciles an inventory
type InventoryPlan struct {
	Upserts []*InventoryItem
	Deletes []string // item IDs
}

// Empty reports whether the plan changes nothing
func (p InventoryPlan) Empty() bool {
	return len(p.Upserts) == 0 && len(p.Deletes) == 0
}

type workingItem struct {
	item    *InventoryItem
	stored  bool
	deleted bool
	dirty   bool
}

// ReconcileInventory applies signed quantity changes to the current inventory.
// Names match case-insensitively, a stack at or below zero is deleted, and an
// unknown name is only created by a positive change. Changes apply in order, so
// several changes to the same item compose.
func ReconcileInventory(adventureID string, current []*InventoryItem, changes []agents.InventoryChange, now time.Time) InventoryPlan {
	items := make(map[string]*workingItem, len(current))
	for _, it := range current {
		cp := *it
		items[NameKey(it.Name)] = &workingItem{item: &cp, stored: true}
	}

	order := make([]string, 0, len(changes))
	for _, c := range changes {
		key := NameKey(c.Name)
		if key == "" || c.QuantityChange == 0 {
			continue
		}

		w, ok := items[key]
		if !ok || w.deleted {
			if c.QuantityChange <= 0 {
				continue
			}
			if !ok {
				w = &workingItem{item: &InventoryItem{
					ID:          uuid.New().String(),
					AdventureID: adventureID,
					Name:        c.Name,
				}}
				items[key] = w
			}
			w.deleted = false
			w.item.Quantity = 0
		}

		w.item.Quantity += c.QuantityChange
		if c.Description != "" {
			w.item.Description = c.Description
		}
		if c.Reason != "" {
			w.item.Reason = c.Reason
		}
		w.item.UpdatedAt = now
		if w.item.Quantity <= 0 {
			w.deleted = true
		}
		if !w.dirty {
			w.dirty = true
			order = append(order, key)
		}
	}

	var plan InventoryPlan
	for _, key := range order {
		w := items[key]
		switch {
		case w.deleted && w.stored:
			plan.Deletes = append(plan.Deletes, w.item.ID)
		case !w.deleted:
			plan.Upserts = append(plan.Upserts, w.item)
		}
	}
	return plan
}

// MergeGlossary returns the proposed terms that are new to the adventure.
// The first definition of a term wins, including within one batch.
func MergeGlossary(adventureID string, existing []*GlossaryTerm, proposals []agents.GlossaryEntry, now time.Time) []*GlossaryTerm {
	seen := make(map[string]bool, len(existing))
	for _, g := range existing {
		seen[NameKey(g.Term)] = true
	}

	var added []*GlossaryTerm
	for _, p := range proposals {
		key := NameKey(p.Term)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		added = append(added, &GlossaryTerm{
			ID:          uuid.New().String(),
			AdventureID: adventureID,
			Term:        p.Term,
			Definition:  p.Definition,
			CreatedAt:   now,
		})
	}
	return added
}

// ApplyStatAdjustment adds a signed amount to one current stat.
// Every stat is floored at zero and hp and mp are capped at their base values.
func ApplyStatAdjustment(base, current character.Stats, stat string, amount int) (character.Stats, error) {
	v, err := current.Get(stat)
	if err != nil {
		return current, err
	}
	v += amount
	if v < 0 {
		v = 0
	}
	switch stat {
	case "hp":
		if v > base.HP {
			v = base.HP
		}
	case "mp":
		if v > base.MP {
			v = base.MP
		}
	}
	next := current
	if err := next.Set(stat, v); err != nil {
		return current, err
	}
	return next, nil
}

// Applied summarizes what a turn changed
type Applied struct {
	Entries      []*LogEntry `json:"entries"`
	NewTerms     int         `json:"newTerms"`
	ItemsChanged int         `json:"itemsChanged"`
	StatChanged  string      `json:"statChanged,omitempty"`
	LeveledUp    bool        `json:"leveledUp"`
}

// Applier folds a narrator response into persisted adventure state
type Applier struct {
	store Store
	now   func() time.Time
}

// NewApplier creates a new applier
func NewApplier(store Store) *Applier {
	return &Applier{store: store, now: time.Now}
}

func (ap *Applier) appendEntry(ctx context.Context, adv *Adventure, kind LogKind, content string, options []string) (*LogEntry, error) {
	entry, err := ap.store.AppendLog(ctx, &LogEntry{
		ID:           uuid.New().String(),
		AdventureID:  adv.ID,
		Kind:         kind,
		Content:      content,
		EventOptions: options,
		CreatedAt:    ap.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append %s entry: %w", kind, err)
	}
	return entry, nil
}

// Apply writes the outcome, level note, event, glossary, inventory and stats in that order.
// adv is updated in place to reflect the new stats.
func (ap *Applier) Apply(ctx context.Context, adv *Adventure, class *character.Class, resp *agents.DMResponse) (*Applied, error) {
	out := &Applied{}
	now := ap.now()

	entry, err := ap.appendEntry(ctx, adv, KindResult, resp.Outcome, nil)
	if err != nil {
		return nil, err
	}
	out.Entries = append(out.Entries, entry)

	level := class.GrantXP(adv.Level, adv.CurrentXP, resp.ExperienceGained)
	if level.LeveledUp {
		note := fmt.Sprintf("⭐ Level up! You are now level %d.", level.Level)
		entry, err := ap.appendEntry(ctx, adv, KindResult, note, nil)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, entry)
		out.LeveledUp = true
	}

	// the event is written last so it stays pending
	if resp.ProactiveEvent != "" {
		entry, err := ap.appendEntry(ctx, adv, KindEvent, "🌟 "+resp.ProactiveEvent, resp.EventOptions)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, entry)
	}

	if len(resp.GlossaryTerms) > 0 {
		existing, err := ap.store.ListGlossary(ctx, adv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load glossary: %w", err)
		}
		if added := MergeGlossary(adv.ID, existing, resp.GlossaryTerms, now); len(added) > 0 {
			n, err := ap.store.AddGlossaryTerms(ctx, adv.ID, added)
			if err != nil {
				return nil, fmt.Errorf("failed to update glossary: %w", err)
			}
			out.NewTerms = n
		}
	}

	if len(resp.InventoryChanges) > 0 {
		items, err := ap.store.ListInventory(ctx, adv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load inventory: %w", err)
		}
		plan := ReconcileInventory(adv.ID, items, resp.InventoryChanges, now)
		if !plan.Empty() {
			if err := ap.store.SaveInventory(ctx, adv.ID, plan.Upserts, plan.Deletes); err != nil {
				return nil, fmt.Errorf("failed to update inventory: %w", err)
			}
			out.ItemsChanged = len(plan.Upserts) + len(plan.Deletes)
		}
	}

	base, current := adv.BaseStats, adv.CurrentStats
	if resp.StatAdjustment && resp.StatToAdjust != "" && resp.AdjustmentAmount != 0 {
		next, err := ApplyStatAdjustment(base, current, resp.StatToAdjust, resp.AdjustmentAmount)
		if err != nil {
			return nil, err
		}
		current = next
		out.StatChanged = resp.StatToAdjust
	}
	if level.LeveledUp {
		base = base.Add(level.Gains)
		current = current.Add(level.Gains)
	}

	if out.StatChanged != "" || level.XP != adv.CurrentXP || level.LeveledUp {
		update := StatsUpdate{Base: base, Current: current, Level: level.Level, XP: level.XP}
		if err := ap.store.UpdateAdventureStats(ctx, adv.ID, update); err != nil {
			return nil, fmt.Errorf("failed to update stats: %w", err)
		}
		adv.BaseStats, adv.CurrentStats = base, current
		adv.Level, adv.CurrentXP = level.Level, level.XP
	}

	return out, nil
}
