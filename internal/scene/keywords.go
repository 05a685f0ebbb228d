package scene

// synonymGroup maps a canonical lemma to the words folded into it
type synonymGroup struct {
	canonical string
	words     []string
}

// Order matters: the first group containing a word wins.
var synonyms = []synonymGroup{
	{"forest", []string{"woods", "woodland", "grove", "thicket", "jungle"}},
	{"castle", []string{"fortress", "citadel", "stronghold", "palace", "keep"}},
	{"desert", []string{"wasteland", "dunes", "badlands", "oasis"}},
	{"tavern", []string{"inn", "pub", "alehouse", "bar"}},
	{"cave", []string{"cavern", "grotto", "tunnel", "den"}},
	{"mountain", []string{"peak", "cliff", "summit", "ridge"}},
	{"dungeon", []string{"basement", "crypt", "tomb", "underground"}},
	{"village", []string{"town", "settlement", "hamlet"}},
	{"temple", []string{"shrine", "cathedral", "church"}},
	{"swamp", []string{"marsh", "bog", "wetland"}},
	{"ruins", []string{"rubble", "remnants", "wreckage"}},
	{"dark", []string{"shadowy", "dim", "gloomy", "murky", "black"}},
	{"bright", []string{"sunny", "brilliant", "radiant", "illuminated"}},
	{"cold", []string{"frozen", "icy", "frigid", "chilly"}},
	{"warm", []string{"hot", "heated", "burning"}},
	{"mysterious", []string{"enigmatic", "cryptic", "strange"}},
	{"ancient", []string{"old", "aged", "historic", "archaic"}},
	{"large", []string{"huge", "massive", "enormous", "vast", "grand"}},
	{"small", []string{"tiny", "little", "compact", "cramped"}},
}

type category struct {
	name     string
	keywords []string
}

// Declared order breaks ties between equally scored categories.
var categories = []category{
	{"forest_outdoor", []string{"forest", "woods", "trees", "grove", "jungle"}},
	{"castle_indoor", []string{"throne", "hall", "chamber", "room", "corridor"}},
	{"castle_outdoor", []string{"castle", "fortress", "walls", "courtyard", "battlements"}},
	{"tavern_indoor", []string{"tavern", "inn", "bar", "common"}},
	{"cave_underground", []string{"cave", "cavern", "tunnel", "underground", "dungeon"}},
	{"desert_outdoor", []string{"desert", "dunes", "oasis", "sand"}},
	{"mountain_outdoor", []string{"mountain", "peak", "cliff", "summit"}},
	{"village_outdoor", []string{"village", "town", "settlement", "street"}},
	{"temple_indoor", []string{"temple", "shrine", "altar", "sanctuary"}},
	{"swamp_outdoor", []string{"swamp", "marsh", "bog"}},
	{"ruins_outdoor", []string{"ruins", "rubble", "remnants"}},
}

var atmospheres = map[string]bool{
	"dark":       true,
	"bright":     true,
	"cold":       true,
	"warm":       true,
	"mysterious": true,
	"ancient":    true,
}

var stopWords = map[string]bool{
	"the": true, "and": true, "you": true, "are": true, "in": true, "at": true, "on": true,
	"with": true, "a": true, "an": true, "to": true, "from": true, "of": true,
}

// GenericCategory is used when no category keyword matches
const GenericCategory = "generic_scene"

var synonymIndex = func() map[string]string {
	idx := make(map[string]string)
	for _, g := range synonyms {
		for _, w := range g.words {
			if _, seen := idx[w]; !seen {
				idx[w] = g.canonical
			}
		}
	}
	return idx
}()

var enhancers = map[string]string{
	"forest_outdoor":   "Lush vegetation, dappled sunlight through trees",
	"castle_indoor":    "Stone architecture, medieval interior design, torchlight",
	"castle_outdoor":   "Imposing stone walls, medieval architecture, dramatic sky",
	"tavern_indoor":    "Warm wooden interior, flickering firelight, cozy atmosphere",
	"cave_underground": "Rocky formations, mysterious shadows, underground ambiance",
	"desert_outdoor":   "Vast sandy landscape, heat shimmer, dramatic lighting",
	"mountain_outdoor": "Rugged terrain, expansive vistas, majestic peaks",
	"village_outdoor":  "Rustic buildings, cobblestone paths, lived-in feel",
	"temple_indoor":    "Sacred architecture, ornate details, divine lighting",
	"swamp_outdoor":    "Murky waters, twisted trees, misty atmosphere",
	"ruins_outdoor":    "Crumbling stone, overgrown vegetation, sense of age",
}
