package game

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/qninhdt/ai-adventure/internal/agents"
	"github.com/qninhdt/ai-adventure/internal/character"
	"github.com/qninhdt/ai-adventure/internal/scene"
	"github.com/qninhdt/ai-adventure/internal/validation"
)

// historySize is how many log entries the narrator sees
const historySize = 3

// Narrator is the text model behind the dungeon master
type Narrator interface {
	CheckRoll(ctx context.Context, p agents.RollPrompt) (*agents.RollCheck, error)
	Narrate(ctx context.Context, p *agents.TurnPrompt) (*agents.DMResponse, error)
	CreateWorld(ctx context.Context, class string) (*agents.WorldSetup, error)
}

// Update is a live notification about an adventure
type Update struct {
	Type        string      `json:"type"`
	AdventureID string      `json:"adventureId"`
	Data        interface{} `json:"data"`
}

// Notifier delivers live updates to connected clients
type Notifier interface {
	Publish(u Update)
}

type noopNotifier struct{}

func (noopNotifier) Publish(Update) {}

// Options configures an Engine
type Options struct {
	GeneratorTimeout time.Duration
	Catalog          *character.Catalog
	Rand             Randomizer
	Scenes           *SceneQueue
	Notifier         Notifier
	// PortraitURL maps a catalog portrait key to a public URL
	PortraitURL func(key string) string
}

// Engine orchestrates adventures and resolves turns
type Engine struct {
	store    Store
	narrator Narrator
	applier  *Applier
	events   *EventPolicy
	locks    *LockManager
	scenes   *SceneQueue
	notifier Notifier
	catalog  *character.Catalog
	rng      Randomizer
	timeout  time.Duration
	portrait func(string) string
	tracer   trace.Tracer
	now      func() time.Time
}

// NewEngine creates a new engine
func NewEngine(store Store, narrator Narrator, opts Options) *Engine {
	e := &Engine{
		store:    store,
		narrator: narrator,
		applier:  NewApplier(store),
		locks:    NewLockManager(),
		scenes:   opts.Scenes,
		notifier: opts.Notifier,
		catalog:  opts.Catalog,
		rng:      opts.Rand,
		timeout:  opts.GeneratorTimeout,
		portrait: opts.PortraitURL,
		tracer:   otel.Tracer("github.com/qninhdt/ai-adventure/internal/game"),
		now:      time.Now,
	}
	if e.rng == nil {
		e.rng = globalRand{}
	}
	e.events = NewEventPolicy(e.rng)
	if e.catalog == nil {
		e.catalog = character.Default()
	}
	if e.timeout <= 0 {
		e.timeout = 45 * time.Second
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.portrait == nil {
		e.portrait = func(key string) string { return key }
	}
	if e.scenes != nil {
		e.scenes.OnResolved(func(job SceneJob, res *scene.Resolution) {
			e.notifier.Publish(Update{Type: "background", AdventureID: job.AdventureID, Data: res.Background})
		})
	}
	return e
}

// Catalog returns the class catalog in use
func (e *Engine) Catalog() *character.Catalog {
	return e.catalog
}

// CreateRequest is a new character submitted by a player
type CreateRequest struct {
	Class string                    `json:"characterClass"`
	Stats validation.StatAllocation `json:"stats"`
}

// CreateAdventure validates the character, invents the world and stores the adventure.
// Nothing is generated or persisted when the stats are invalid.
func (e *Engine) CreateAdventure(ctx context.Context, userID string, req CreateRequest) (*Adventure, error) {
	class, stats, err := validation.ValidateCharacter(e.catalog, req.Class, req.Stats)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, e.timeout)
	world, err := e.narrator.CreateWorld(wctx, class.ID)
	cancel()
	if err != nil {
		log.Printf("game: world creation failed class=%s: %v", class.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	now := e.now()
	adv := &Adventure{
		ID:               uuid.New().String(),
		UserID:           userID,
		Title:            world.Title,
		Class:            class.ID,
		BaseStats:        stats,
		CurrentStats:     stats,
		WorldDescription: world.WorldDescription,
		Status:           StatusActive,
		Level:            1,
		CreatedAt:        now,
		LastPlayedAt:     now,
	}
	if key := class.RandomPortrait(nil); key != "" {
		adv.PortraitURL = e.portrait(key)
	}

	entry := &LogEntry{
		ID:          uuid.New().String(),
		AdventureID: adv.ID,
		Kind:        KindWorld,
		Content:     world.WorldDescription,
		TurnNumber:  0,
		CreatedAt:   now,
	}
	if err := e.store.CreateAdventure(ctx, adv, entry); err != nil {
		return nil, fmt.Errorf("failed to create adventure: %w", err)
	}
	log.Printf("game: created adventure id=%s class=%s title=%q", adv.ID, adv.Class, adv.Title)

	e.queueScene(adv.ID, world.WorldDescription)
	return adv, nil
}

// TurnResult is everything a resolved turn produced
type TurnResult struct {
	Adventure      *Adventure   `json:"adventure"`
	Entries        []*LogEntry  `json:"entries"`
	Roll           *RollOutcome `json:"roll,omitempty"`
	EventTriggered bool         `json:"eventTriggered"`
	SceneQueued    bool         `json:"sceneQueued"`
	Applied        *Applied     `json:"applied"`
}

// TakeTurn resolves one player action against an adventure
func (e *Engine) TakeTurn(ctx context.Context, userID, adventureID, action string) (*TurnResult, error) {
	ctx, span := e.tracer.Start(ctx, "turn.take", trace.WithAttributes(attribute.String("adventure.id", adventureID)))
	defer span.End()

	res, err := e.takeTurn(ctx, userID, adventureID, action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("turn.number", res.Adventure.TurnCount),
		attribute.Bool("turn.rolled", res.Roll != nil),
		attribute.Bool("turn.event", res.EventTriggered),
	)
	return res, nil
}

func (e *Engine) takeTurn(ctx context.Context, userID, adventureID, action string) (*TurnResult, error) {
	if err := validation.ValidateAdventureID(adventureID); err != nil {
		return nil, err
	}
	action, err := validation.ValidateAction(action)
	if err != nil {
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
	switch adv.Status {
	case StatusCompleted:
		return nil, ErrNotActive
	case StatusPaused:
		if err := e.store.UpdateAdventureStatus(ctx, adv.ID, StatusActive, e.now()); err != nil {
			return nil, fmt.Errorf("failed to resume adventure: %w", err)
		}
		adv.Status = StatusActive
	}
	class, ok := e.catalog.Class(adv.Class)
	if !ok {
		return nil, fmt.Errorf("adventure %s has unknown class %q", adv.ID, adv.Class)
	}

	result := &TurnResult{Adventure: adv}

	// the action is recorded before any model call
	actionEntry, err := e.applier.appendEntry(ctx, adv, KindAction, action, nil)
	if err != nil {
		return nil, err
	}
	result.Entries = append(result.Entries, actionEntry)
	adv.TurnCount = actionEntry.TurnNumber
	adv.PendingEventID = ""

	prompt, err := e.buildPrompt(ctx, adv, action)
	if err != nil {
		return nil, err
	}

	roll := e.rollCheck(ctx, adv, action)
	if roll != nil {
		entry, err := e.applier.appendEntry(ctx, adv, KindRoll, roll.LogText(), nil)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, entry)
		result.Roll = roll
		prompt.RollContext = roll.PromptContext()
	}

	prompt.EventsEnabled = e.events.ShouldTrigger(adv.TurnCount, adv.LastEventTurn)

	resp, err := e.narrate(ctx, prompt)
	if err != nil {
		log.Printf("game: narration failed adventure=%s turn=%d: %v", adv.ID, adv.TurnCount, err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if !prompt.EventsEnabled {
		resp.StripEvent()
	}

	actx, span := e.tracer.Start(ctx, "turn.apply")
	applied, err := e.applier.Apply(actx, adv, class, resp)
	span.End()
	if err != nil {
		return nil, err
	}
	result.Applied = applied
	result.Entries = append(result.Entries, applied.Entries...)

	if resp.ProactiveEvent != "" {
		result.EventTriggered = true
		last := applied.Entries[len(applied.Entries)-1]
		adv.PendingEventID = last.ID
		adv.LastEventTurn = last.TurnNumber
	}
	adv.LastPlayedAt = e.now()

	if resp.SceneDescription != "" {
		result.SceneQueued = e.queueScene(adv.ID, resp.SceneDescription)
	}

	e.notifier.Publish(Update{Type: "turn", AdventureID: adv.ID, Data: result})
	return result, nil
}

func (e *Engine) buildPrompt(ctx context.Context, adv *Adventure, action string) (*agents.TurnPrompt, error) {
	items, err := e.store.ListInventory(ctx, adv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	recent, err := e.store.RecentLog(ctx, adv.ID, historySize)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	p := &agents.TurnPrompt{
		Class:            adv.Class,
		Level:            adv.Level,
		Stats:            adv.CurrentStats,
		WorldDescription: adv.WorldDescription,
		Action:           action,
		Inventory:        make([]agents.InventoryLine, 0, len(items)),
	}
	for _, it := range items {
		p.Inventory = append(p.Inventory, agents.InventoryLine{Name: it.Name, Quantity: it.Quantity, Description: it.Description})
	}
	for _, entry := range recent {
		p.History = append(p.History, agents.HistoryLine{Label: entry.HistoryLabel(), Text: entry.Content})
	}
	return p, nil
}

// rollCheck asks the narrator for a roll decision and resolves it.
// A failed check degrades to no roll rather than failing the turn.
func (e *Engine) rollCheck(ctx context.Context, adv *Adventure, action string) *RollOutcome {
	ctx, span := e.tracer.Start(ctx, "turn.roll_check")
	defer span.End()

	lastResult := ""
	if entry, found, err := e.store.LatestLog(ctx, adv.ID, KindResult); err != nil {
		log.Printf("game: failed to load last result adventure=%s: %v", adv.ID, err)
	} else if found {
		lastResult = entry.Content
	}

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	check, err := e.narrator.CheckRoll(rctx, agents.RollPrompt{MostRecentResult: lastResult, PlayerAction: action})
	if err != nil {
		span.RecordError(err)
		log.Printf("game: roll check failed adventure=%s, continuing without roll: %v", adv.ID, err)
		return nil
	}
	return ResolveRoll(e.rng, adv.CurrentStats, check)
}

func (e *Engine) narrate(ctx context.Context, p *agents.TurnPrompt) (*agents.DMResponse, error) {
	ctx, span := e.tracer.Start(ctx, "turn.narrate", trace.WithAttributes(attribute.Bool("turn.events_enabled", p.EventsEnabled)))
	defer span.End()

	nctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	resp, err := e.narrator.Narrate(nctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

func (e *Engine) queueScene(adventureID, description string) bool {
	if e.scenes == nil || description == "" {
		return false
	}
	return e.scenes.Enqueue(SceneJob{AdventureID: adventureID, Description: description})
}
