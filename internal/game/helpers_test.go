package game

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qninhdt/ai-adventure/internal/agents"
	"github.com/qninhdt/ai-adventure/internal/character"
	"github.com/qninhdt/ai-adventure/internal/scene"
	"github.com/qninhdt/ai-adventure/internal/validation"
)

// warriorAllocation is a valid 27 point warrior
func warriorAllocation() validation.StatAllocation {
	return validation.StatAllocation{HP: 12, MP: 2, Str: 15, Dex: 13, Con: 14, Int: 8, Wis: 10, Cha: 12}
}

func warriorStats() character.Stats {
	return warriorAllocation().Stats()
}

// memStore is an in-memory Store used by the game tests
type memStore struct {
	mu          sync.Mutex
	adventures  map[string]*Adventure
	order       []string
	log         map[string][]*LogEntry
	inventory   map[string][]*InventoryItem
	glossary    map[string][]*GlossaryTerm
	backgrounds map[string]*scene.Background

	failAppend LogKind
}

func newMemStore() *memStore {
	return &memStore{
		adventures:  make(map[string]*Adventure),
		log:         make(map[string][]*LogEntry),
		inventory:   make(map[string][]*InventoryItem),
		glossary:    make(map[string][]*GlossaryTerm),
		backgrounds: make(map[string]*scene.Background),
	}
}

func (m *memStore) CreateAdventure(_ context.Context, a *Adventure, world *LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.adventures[a.ID] = &cp
	m.order = append(m.order, a.ID)
	w := *world
	m.log[a.ID] = append(m.log[a.ID], &w)
	return nil
}

func (m *memStore) GetAdventure(_ context.Context, id string) (*Adventure, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adventures[id]
	if !ok || a.DeletedAt != nil {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

func (m *memStore) ListAdventures(_ context.Context, userID string, status Status) ([]*Adventure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Adventure
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.adventures[m.order[i]]
		if a.UserID != userID || a.DeletedAt != nil {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateAdventureStatus(_ context.Context, id string, status Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adventures[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.LastPlayedAt = at
	return nil
}

func (m *memStore) UpdateAdventureStats(_ context.Context, id string, u StatsUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adventures[id]
	if !ok {
		return ErrNotFound
	}
	a.BaseStats, a.CurrentStats = u.Base, u.Current
	a.Level, a.CurrentXP = u.Level, u.XP
	return nil
}

func (m *memStore) SoftDeleteAdventure(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adventures[id]
	if !ok {
		return ErrNotFound
	}
	a.DeletedAt = &at
	return nil
}

func (m *memStore) AppendLog(_ context.Context, e *LogEntry) (*LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != "" && e.Kind == m.failAppend {
		return nil, errors.New("append failed")
	}
	a, ok := m.adventures[e.AdventureID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	if cp.Kind == KindAction {
		a.TurnCount++
	}
	cp.TurnNumber = a.TurnCount
	if cp.Kind == KindEvent {
		a.PendingEventID = cp.ID
		a.LastEventTurn = cp.TurnNumber
	} else {
		a.PendingEventID = ""
	}
	a.LastPlayedAt = cp.CreatedAt
	m.log[e.AdventureID] = append(m.log[e.AdventureID], &cp)
	out := cp
	return &out, nil
}

func (m *memStore) ListLog(_ context.Context, adventureID string) ([]*LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*LogEntry(nil), m.log[adventureID]...), nil
}

func (m *memStore) RecentLog(_ context.Context, adventureID string, n int) ([]*LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.log[adventureID]
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return append([]*LogEntry(nil), entries...), nil
}

func (m *memStore) LatestLog(_ context.Context, adventureID string, kind LogKind) (*LogEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.log[adventureID]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == kind {
			return entries[i], true, nil
		}
	}
	return nil, false, nil
}

func (m *memStore) GetLogEntry(_ context.Context, id string) (*LogEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entries := range m.log {
		for _, e := range entries {
			if e.ID == id {
				return e, true, nil
			}
		}
	}
	return nil, false, nil
}

func (m *memStore) ListInventory(_ context.Context, adventureID string) ([]*InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*InventoryItem
	for _, it := range m.inventory[adventureID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) SaveInventory(_ context.Context, adventureID string, upserts []*InventoryItem, deletes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.inventory[adventureID]
	for _, id := range deletes {
		for i, it := range items {
			if it.ID == id {
				items = append(items[:i], items[i+1:]...)
				break
			}
		}
	}
	for _, up := range upserts {
		cp := *up
		replaced := false
		for i, it := range items {
			if it.ID == up.ID {
				items[i] = &cp
				replaced = true
				break
			}
		}
		if !replaced {
			items = append(items, &cp)
		}
	}
	m.inventory[adventureID] = items
	return nil
}

func (m *memStore) ListGlossary(_ context.Context, adventureID string) ([]*GlossaryTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*GlossaryTerm(nil), m.glossary[adventureID]...), nil
}

func (m *memStore) AddGlossaryTerms(_ context.Context, adventureID string, terms []*GlossaryTerm) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, term := range terms {
		dup := false
		for _, g := range m.glossary[adventureID] {
			if NameKey(g.Term) == NameKey(term.Term) {
				dup = true
				break
			}
		}
		if !dup {
			m.glossary[adventureID] = append(m.glossary[adventureID], term)
			added++
		}
	}
	return added, nil
}

func (m *memStore) GetBackground(_ context.Context, hash string) (*scene.Background, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bg, ok := m.backgrounds[hash]
	return bg, ok, nil
}

func (m *memStore) CreateBackground(_ context.Context, bg *scene.Background) (*scene.Background, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.backgrounds[bg.SceneHash]; ok {
		return existing, false, nil
	}
	m.backgrounds[bg.SceneHash] = bg
	return bg, true, nil
}

func (m *memStore) TouchBackground(_ context.Context, hash string, at time.Time) (*scene.Background, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bg, ok := m.backgrounds[hash]
	if !ok {
		return nil, errors.New("background not found")
	}
	bg.UsageCount++
	bg.LastUsedAt = at
	return bg, nil
}

func (m *memStore) SetAdventureScene(_ context.Context, adventureID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adventures[adventureID]
	if !ok {
		return ErrNotFound
	}
	a.CurrentSceneHash = hash
	return nil
}

// adventure returns the stored copy for assertions
func (m *memStore) adventure(id string) *Adventure {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.adventures[id]
	return &cp
}

func (m *memStore) kinds(adventureID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.log[adventureID] {
		out = append(out, string(e.Kind))
	}
	return out
}

// fakeNarrator returns canned responses and records what it was asked
type fakeNarrator struct {
	mu         sync.Mutex
	world      *agents.WorldSetup
	worldErr   error
	roll       *agents.RollCheck
	rollErr    error
	responses  []*agents.DMResponse
	narrateErr error

	prompts     []*agents.TurnPrompt
	rollPrompts []agents.RollPrompt
}

func newFakeNarrator() *fakeNarrator {
	return &fakeNarrator{
		world: &agents.WorldSetup{Title: "The Sunken Crown", WorldDescription: "A drowned kingdom of salt and bells."},
		roll:  &agents.RollCheck{RequiresRoll: false},
	}
}

func (f *fakeNarrator) CreateWorld(_ context.Context, _ string) (*agents.WorldSetup, error) {
	if f.worldErr != nil {
		return nil, f.worldErr
	}
	return f.world, nil
}

func (f *fakeNarrator) CheckRoll(_ context.Context, p agents.RollPrompt) (*agents.RollCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollPrompts = append(f.rollPrompts, p)
	if f.rollErr != nil {
		return nil, f.rollErr
	}
	return f.roll, nil
}

func (f *fakeNarrator) Narrate(_ context.Context, p *agents.TurnPrompt) (*agents.DMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.prompts = append(f.prompts, &cp)
	if f.narrateErr != nil {
		return nil, f.narrateErr
	}
	if len(f.responses) == 0 {
		return &agents.DMResponse{Outcome: "Nothing much happens."}, nil
	}
	resp := *f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &resp, nil
}

func (f *fakeNarrator) lastPrompt() *agents.TurnPrompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

// seqRand replays fixed dice and draws
type seqRand struct {
	mu     sync.Mutex
	dice   []int // d20 faces, 1..20
	floats []float64
}

func (r *seqRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dice) == 0 {
		return 0
	}
	face := r.dice[0]
	if len(r.dice) > 1 {
		r.dice = r.dice[1:]
	}
	return (face - 1) % n
}

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[0]
	if len(r.floats) > 1 {
		r.floats = r.floats[1:]
	}
	return v
}

// recorder is a Notifier that keeps every update
type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) Publish(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.updates {
		out = append(out, u.Type)
	}
	return out
}

// newTestEngine builds an engine over a fresh memStore and fakeNarrator
func newTestEngine(rng Randomizer) (*Engine, *memStore, *fakeNarrator) {
	store := newMemStore()
	narrator := newFakeNarrator()
	e := NewEngine(store, narrator, Options{GeneratorTimeout: time.Second, Rand: rng})
	return e, store, narrator
}

// mustCreate creates a warrior adventure owned by userID
func mustCreate(t *testing.T, e *Engine, userID string) *Adventure {
	t.Helper()
	adv, err := e.CreateAdventure(context.Background(), userID, CreateRequest{Class: "warrior", Stats: warriorAllocation()})
	if err != nil {
		t.Fatalf("Failed to create adventure: %v", err)
	}
	return adv
}

func joinKinds(kinds []string) string {
	return strings.Join(kinds, ",")
}
