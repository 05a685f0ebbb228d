package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/qninhdt/ai-adventure/internal/agents"
	"github.com/qninhdt/ai-adventure/internal/validation"
)

// TestCreateAdventure tests adventure creation from a valid character
func TestCreateAdventure(t *testing.T) {
	e, store, _ := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")

	if adv.Title != "The Sunken Crown" {
		t.Errorf("Expected title 'The Sunken Crown', got '%s'", adv.Title)
	}
	if adv.Status != StatusActive {
		t.Errorf("Expected status active, got %s", adv.Status)
	}
	if adv.Level != 1 || adv.CurrentXP != 0 || adv.TurnCount != 0 {
		t.Errorf("Expected fresh level 1 adventure, got level=%d xp=%d turns=%d", adv.Level, adv.CurrentXP, adv.TurnCount)
	}
	if adv.CurrentStats != adv.BaseStats {
		t.Errorf("Expected current stats to equal base stats, got %v vs %v", adv.CurrentStats, adv.BaseStats)
	}
	if adv.BaseStats != warriorStats() {
		t.Errorf("Expected base stats %v, got %v", warriorStats(), adv.BaseStats)
	}
	if !strings.HasPrefix(adv.PortraitURL, "portraits/warrior-") {
		t.Errorf("Expected a warrior portrait, got '%s'", adv.PortraitURL)
	}

	entries, _ := store.ListLog(context.Background(), adv.ID)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Kind != KindWorld || entries[0].TurnNumber != 0 {
		t.Errorf("Expected world entry at turn 0, got %s at %d", entries[0].Kind, entries[0].TurnNumber)
	}
	if entries[0].Content != "A drowned kingdom of salt and bells." {
		t.Errorf("Unexpected world description '%s'", entries[0].Content)
	}
}

// TestCreateAdventureRejectsInvalidStats tests that nothing is stored for a bad sheet
func TestCreateAdventureRejectsInvalidStats(t *testing.T) {
	e, store, _ := newTestEngine(&seqRand{})

	alloc := warriorAllocation()
	alloc.Str = 16
	_, err := e.CreateAdventure(context.Background(), "user-1", CreateRequest{Class: "warrior", Stats: alloc})
	if !errors.Is(err, validation.ErrInvalidStats) {
		t.Fatalf("Expected ErrInvalidStats, got %v", err)
	}

	alloc = warriorAllocation()
	alloc.HP = 30
	_, err = e.CreateAdventure(context.Background(), "user-1", CreateRequest{Class: "warrior", Stats: alloc})
	if !errors.Is(err, validation.ErrInvalidStats) {
		t.Fatalf("Expected ErrInvalidStats for HP mismatch, got %v", err)
	}

	_, err = e.CreateAdventure(context.Background(), "user-1", CreateRequest{Class: "bard", Stats: warriorAllocation()})
	if !errors.Is(err, validation.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for unknown class, got %v", err)
	}

	if len(store.order) != 0 {
		t.Errorf("Expected no adventures stored, got %d", len(store.order))
	}
}

// TestCreateAdventureWorldFailure tests that a narrator failure surfaces as a generation failure
func TestCreateAdventureWorldFailure(t *testing.T) {
	e, store, narrator := newTestEngine(&seqRand{})
	narrator.worldErr = agents.ErrEmptyResponse

	_, err := e.CreateAdventure(context.Background(), "user-1", CreateRequest{Class: "warrior", Stats: warriorAllocation()})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Expected ErrGenerationFailed, got %v", err)
	}
	if len(store.order) != 0 {
		t.Errorf("Expected no adventures stored, got %d", len(store.order))
	}
}

// TestTakeTurn tests a plain turn without roll or event
func TestTakeTurn(t *testing.T) {
	e, store, narrator := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")
	narrator.responses = []*agents.DMResponse{{Outcome: "You push open the rusted gate."}}

	res, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "  I open the gate  ")
	if err != nil {
		t.Fatalf("Failed to take turn: %v", err)
	}

	if res.Adventure.TurnCount != 1 {
		t.Errorf("Expected turn count 1, got %d", res.Adventure.TurnCount)
	}
	if res.Roll != nil {
		t.Errorf("Expected no roll, got %+v", res.Roll)
	}
	if got := joinKinds(store.kinds(adv.ID)); got != "world,action,result" {
		t.Errorf("Expected log world,action,result, got %s", got)
	}

	entries, _ := store.ListLog(context.Background(), adv.ID)
	if entries[1].Content != "I open the gate" {
		t.Errorf("Expected trimmed action, got '%s'", entries[1].Content)
	}
	for _, entry := range entries[1:] {
		if entry.TurnNumber != 1 {
			t.Errorf("Expected %s entry at turn 1, got %d", entry.Kind, entry.TurnNumber)
		}
	}

	p := narrator.lastPrompt()
	if p.Action != "I open the gate" {
		t.Errorf("Expected prompt action 'I open the gate', got '%s'", p.Action)
	}
	if len(p.History) != 2 || p.History[0].Label != "SETTING" || p.History[1].Label != "PLAYER" {
		t.Errorf("Expected SETTING and PLAYER history, got %+v", p.History)
	}
	if p.RollContext != "" {
		t.Errorf("Expected empty roll context, got '%s'", p.RollContext)
	}
}

// TestTakeTurnHistoryWindow tests that the narrator sees only the last three entries
func TestTakeTurnHistoryWindow(t *testing.T) {
	e, _, narrator := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")

	for _, action := range []string{"look around", "walk north", "light a torch"} {
		if _, err := e.TakeTurn(context.Background(), "user-1", adv.ID, action); err != nil {
			t.Fatalf("Failed to take turn: %v", err)
		}
	}

	p := narrator.lastPrompt()
	if len(p.History) != 3 {
		t.Fatalf("Expected 3 history lines, got %d", len(p.History))
	}
	last := p.History[2]
	if last.Label != "PLAYER" || last.Text != "light a torch" {
		t.Errorf("Expected current action last in history, got %+v", last)
	}
	if p.History[1].Label != "OUTCOME" {
		t.Errorf("Expected previous outcome before action, got %+v", p.History[1])
	}
}

// TestTakeTurnWithRoll tests that a required roll is logged and fed to the narrator
func TestTakeTurnWithRoll(t *testing.T) {
	e, store, narrator := newTestEngine(&seqRand{dice: []int{14}})
	adv := mustCreate(t, e, "user-1")
	narrator.roll = &agents.RollCheck{RequiresRoll: true, StatToRoll: "dex", RollDC: 15}

	res, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "leap across the chasm")
	if err != nil {
		t.Fatalf("Failed to take turn: %v", err)
	}

	if res.Roll == nil {
		t.Fatal("Expected a roll")
	}
	// DEX 13 gives +1
	if res.Roll.Die != 14 || res.Roll.Total != 15 || !res.Roll.Success {
		t.Errorf("Expected 14 + 1 = 15 success, got %+v", res.Roll)
	}
	if got := joinKinds(store.kinds(adv.ID)); got != "world,action,roll,result" {
		t.Errorf("Expected log world,action,roll,result, got %s", got)
	}

	entries, _ := store.ListLog(context.Background(), adv.ID)
	want := "🎲 Rolling DEX... 14 + 1 = 15 vs DC 15 (Success!)"
	if entries[2].Content != want {
		t.Errorf("Expected roll line '%s', got '%s'", want, entries[2].Content)
	}

	p := narrator.lastPrompt()
	if !strings.Contains(p.RollContext, "DEX check") || !strings.Contains(p.RollContext, "SUCCESS") {
		t.Errorf("Expected roll context in prompt, got '%s'", p.RollContext)
	}
	if narrator.rollPrompts[0].PlayerAction != "leap across the chasm" {
		t.Errorf("Expected roll check to see the action, got '%s'", narrator.rollPrompts[0].PlayerAction)
	}
}

// TestTakeTurnRollCheckFailure tests that a failed roll check does not fail the turn
func TestTakeTurnRollCheckFailure(t *testing.T) {
	e, store, narrator := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")
	narrator.rollErr = agents.ErrInvalidResponse

	res, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "sneak past the guard")
	if err != nil {
		t.Fatalf("Failed to take turn: %v", err)
	}
	if res.Roll != nil {
		t.Errorf("Expected no roll, got %+v", res.Roll)
	}
	if got := joinKinds(store.kinds(adv.ID)); got != "world,action,result" {
		t.Errorf("Expected log world,action,result, got %s", got)
	}
}

// TestTakeTurnNarratorFailure tests that the action stays logged when narration fails
func TestTakeTurnNarratorFailure(t *testing.T) {
	e, store, narrator := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")
	narrator.narrateErr = agents.ErrInvalidResponse

	_, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "pick the lock")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Expected ErrGenerationFailed, got %v", err)
	}
	if got := joinKinds(store.kinds(adv.ID)); got != "world,action" {
		t.Errorf("Expected log world,action, got %s", got)
	}
	if got := store.adventure(adv.ID).TurnCount; got != 1 {
		t.Errorf("Expected turn count 1, got %d", got)
	}
}

// TestTakeTurnRejectsBadInput tests input checks and ownership
func TestTakeTurnRejectsBadInput(t *testing.T) {
	e, store, _ := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")

	if _, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "   "); !errors.Is(err, validation.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for blank action, got %v", err)
	}
	if _, err := e.TakeTurn(context.Background(), "user-1", adv.ID, strings.Repeat("a", 1001)); !errors.Is(err, validation.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for long action, got %v", err)
	}
	if _, err := e.TakeTurn(context.Background(), "user-2", adv.ID, "steal the crown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another user, got %v", err)
	}
	if _, err := e.TakeTurn(context.Background(), "user-1", "missing", "wait"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown adventure, got %v", err)
	}

	if got := joinKinds(store.kinds(adv.ID)); got != "world" {
		t.Errorf("Expected no entries appended, got %s", got)
	}
}

// TestTakeTurnCompletedAdventure tests that completed adventures are read-only and paused ones resume
func TestTakeTurnCompletedAdventure(t *testing.T) {
	e, store, _ := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")

	if _, err := e.UpdateStatus(context.Background(), "user-1", adv.ID, StatusPaused); err != nil {
		t.Fatalf("Failed to pause: %v", err)
	}
	if _, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "wake up"); err != nil {
		t.Fatalf("Failed to play paused adventure: %v", err)
	}
	if got := store.adventure(adv.ID).Status; got != StatusActive {
		t.Errorf("Expected paused adventure to resume, got %s", got)
	}

	if _, err := e.UpdateStatus(context.Background(), "user-1", adv.ID, StatusCompleted); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}
	if _, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "keep going"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Expected ErrNotActive, got %v", err)
	}
}

// TestTakeTurnEvents tests the event gap and pending event lifecycle
func TestTakeTurnEvents(t *testing.T) {
	e, store, narrator := newTestEngine(&seqRand{floats: []float64{0}})
	adv := mustCreate(t, e, "user-1")
	narrator.responses = []*agents.DMResponse{{
		Outcome:        "The ground trembles.",
		ProactiveEvent: "A rift opens beneath the square.",
		EventOptions:   []string{"Jump", "Hold on"},
	}}

	for turn := 1; turn <= 2; turn++ {
		res, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "wait")
		if err != nil {
			t.Fatalf("Failed to take turn %d: %v", turn, err)
		}
		if res.EventTriggered {
			t.Errorf("Expected no event on turn %d", turn)
		}
		if narrator.lastPrompt().EventsEnabled {
			t.Errorf("Expected events disabled on turn %d", turn)
		}
	}

	res, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "wait")
	if err != nil {
		t.Fatalf("Failed to take turn 3: %v", err)
	}
	if !res.EventTriggered {
		t.Fatal("Expected an event on turn 3")
	}
	if !narrator.lastPrompt().EventsEnabled {
		t.Error("Expected events enabled on turn 3")
	}

	kinds := store.kinds(adv.ID)
	if kinds[len(kinds)-1] != string(KindEvent) {
		t.Errorf("Expected event entry last, got %s", joinKinds(kinds))
	}
	event, err := e.ActiveEvent(context.Background(), "user-1", adv.ID)
	if err != nil {
		t.Fatalf("Failed to get active event: %v", err)
	}
	if event == nil || event.Content != "🌟 A rift opens beneath the square." {
		t.Fatalf("Expected pending event, got %+v", event)
	}
	if len(event.EventOptions) != 2 {
		t.Errorf("Expected 2 event options, got %d", len(event.EventOptions))
	}
	if got := store.adventure(adv.ID).LastEventTurn; got != 3 {
		t.Errorf("Expected last event turn 3, got %d", got)
	}

	// the next turn resolves the event and is inside the gap again
	res, err = e.TakeTurn(context.Background(), "user-1", adv.ID, "jump")
	if err != nil {
		t.Fatalf("Failed to take turn 4: %v", err)
	}
	if res.EventTriggered {
		t.Error("Expected no event on turn 4")
	}
	event, err = e.ActiveEvent(context.Background(), "user-1", adv.ID)
	if err != nil {
		t.Fatalf("Failed to get active event: %v", err)
	}
	if event != nil {
		t.Errorf("Expected no pending event, got %+v", event)
	}
}

// TestTakeTurnAppliesState tests inventory, glossary, stats and leveling from one response
func TestTakeTurnAppliesState(t *testing.T) {
	e, store, narrator := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")
	narrator.responses = []*agents.DMResponse{{
		Outcome:          "You defeat the lich's servant.",
		GlossaryTerms:    []agents.GlossaryEntry{{Term: "Lich", Definition: "An undead sorcerer."}},
		InventoryChanges: []agents.InventoryChange{{Name: "Torch", QuantityChange: 2}},
		StatAdjustment:   true,
		StatToAdjust:     "hp",
		AdjustmentAmount: -5,
		ExperienceGained: 150,
	}}

	res, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "attack")
	if err != nil {
		t.Fatalf("Failed to take turn: %v", err)
	}
	if !res.Applied.LeveledUp {
		t.Fatal("Expected a level up")
	}
	if got := joinKinds(store.kinds(adv.ID)); got != "world,action,result,result" {
		t.Errorf("Expected log world,action,result,result, got %s", got)
	}

	stored := store.adventure(adv.ID)
	if stored.Level != 2 || stored.CurrentXP != 150 {
		t.Errorf("Expected level 2 with 150 xp, got level=%d xp=%d", stored.Level, stored.CurrentXP)
	}
	// 12 - 5 damage, then +10 from the warrior level up
	if stored.CurrentStats.HP != 17 || stored.BaseStats.HP != 22 {
		t.Errorf("Expected hp 17/22, got %d/%d", stored.CurrentStats.HP, stored.BaseStats.HP)
	}
	if stored.BaseStats.Str != 17 {
		t.Errorf("Expected str 17, got %d", stored.BaseStats.Str)
	}

	view, err := e.GetAdventure(context.Background(), "user-1", adv.ID)
	if err != nil {
		t.Fatalf("Failed to get adventure: %v", err)
	}
	if len(view.Inventory) != 1 || view.Inventory[0].Name != "Torch" || view.Inventory[0].Quantity != 2 {
		t.Errorf("Expected 2 Torch, got %+v", view.Inventory)
	}
	if len(view.Glossary) != 1 || view.Glossary[0].Term != "Lich" {
		t.Errorf("Expected Lich in glossary, got %+v", view.Glossary)
	}
	if view.Progress.NextLevelXP != 225 {
		t.Errorf("Expected next level at 225 xp, got %d", view.Progress.NextLevelXP)
	}
}

// TestTakeTurnSerialized tests that concurrent turns on one adventure get distinct turn numbers
func TestTakeTurnSerialized(t *testing.T) {
	e, store, _ := newTestEngine(&seqRand{})
	adv := mustCreate(t, e, "user-1")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "run"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Failed to take turn: %v", err)
	}

	if got := store.adventure(adv.ID).TurnCount; got != 10 {
		t.Errorf("Expected turn count 10, got %d", got)
	}
	entries, _ := store.ListLog(context.Background(), adv.ID)
	// every action is immediately followed by its own result
	for i := 1; i < len(entries); i += 2 {
		if entries[i].Kind != KindAction || entries[i+1].Kind != KindResult {
			t.Fatalf("Expected action/result pairs, got %s then %s", entries[i].Kind, entries[i+1].Kind)
		}
		if entries[i].TurnNumber != entries[i+1].TurnNumber {
			t.Errorf("Expected result on turn %d, got %d", entries[i].TurnNumber, entries[i+1].TurnNumber)
		}
	}
	if e.locks.Size() != 0 {
		t.Errorf("Expected no locks held, got %d", e.locks.Size())
	}
}

// TestTakeTurnNotifies tests that a resolved turn is published
func TestTakeTurnNotifies(t *testing.T) {
	store := newMemStore()
	rec := &recorder{}
	e := NewEngine(store, newFakeNarrator(), Options{Rand: &seqRand{}, Notifier: rec})
	adv := mustCreate(t, e, "user-1")

	if _, err := e.TakeTurn(context.Background(), "user-1", adv.ID, "listen"); err != nil {
		t.Fatalf("Failed to take turn: %v", err)
	}
	if got := strings.Join(rec.types(), ","); got != "turn" {
		t.Errorf("Expected one turn update, got %s", got)
	}
}
