// Package mystery holds the fixed cast and evidence of the house party murder and generates the secret solution
// for each game.
package mystery

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// Suspect is one of the five party guests who may have killed Rohan Sharma.
type Suspect string

const (
	Kabir     Suspect = "Kabir"
	Ananya    Suspect = "Ananya"
	Siddharth Suspect = "Siddharth"
	Diya      Suspect = "Diya"
	Meera     Suspect = "Meera"
)

// Victim is the murdered student.
const Victim = "Rohan Sharma"

// Suspects lists the roster in presentation order.
var Suspects = []Suspect{Kabir, Ananya, Siddharth, Diya, Meera} //nolint:gochecknoglobals // fixed game content

var suspectDescriptions = map[Suspect]string{ //nolint:gochecknoglobals // fixed game content
	Kabir:     "the loyal but secretive best friend",
	Ananya:    "the competitive and estranged ex-girlfriend",
	Siddharth: "the mysterious artist from the rival college",
	Diya:      "the sharp-witted student reporter",
	Meera:     "the timid and nervous junior",
}

// Description returns the short character sketch of the suspect.
func (s Suspect) Description() string {
	return suspectDescriptions[s]
}

// ParseSuspect resolves a player supplied name to a suspect on the roster, ignoring case and surrounding space.
func ParseSuspect(name string) (Suspect, bool) {
	name = strings.TrimSpace(name)
	for _, s := range Suspects {
		if strings.EqualFold(string(s), name) {
			return s, true
		}
	}
	return "", false
}

// Weapons lists the possible murder weapons.
var Weapons = []string{ //nolint:gochecknoglobals // fixed game content
	"a broken beer bottle",
	"a heavy textbook",
	"a pool cue",
	"a shard of glass from a window",
	"a stolen kitchen knife",
}

// Motives lists the possible motives.
var Motives = []string{ //nolint:gochecknoglobals // fixed game content
	"revenge for a past betrayal",
	"financial gain from his will",
	"to protect a dark secret",
	"a moment of passion fueled by jealousy",
	"to cover up a crime",
}

// Room is a searchable location in the house. The value is the slug the browser client uses to pick a background.
type Room string

const (
	LivingRoom Room = "living_room"
	Kitchen    Room = "kitchen"
	Basement   Room = "basement"
	Bedroom    Room = "bedroom"
	Balcony    Room = "balcony"
)

// DefaultRoom is where every investigation starts.
const DefaultRoom = LivingRoom

// Rooms lists the rooms in presentation order.
var Rooms = []Room{LivingRoom, Kitchen, Basement, Bedroom, Balcony} //nolint:gochecknoglobals // fixed game content

// Label returns the room as used in prose, e.g. "the living room".
func (r Room) Label() string {
	return "the " + strings.ReplaceAll(string(r), "_", " ")
}

// ParseRoom resolves a room slug.
func ParseRoom(slug string) (Room, bool) {
	slug = strings.TrimSpace(slug)
	for _, r := range Rooms {
		if string(r) == slug {
			return r, true
		}
	}
	return "", false
}

// Mystery is the secret solution of one game. It never changes once generated.
type Mystery struct {
	Killer Suspect `json:"killer"`
	Weapon string  `json:"weapon"`
	Motive string  `json:"motive"`
}

// Generator draws mysteries. The zero value uses the runtime's randomly seeded source.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator backed by rng. A nil rng uses the global source.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate picks killer, weapon and motive independently and uniformly.
func (g *Generator) Generate() Mystery {
	return Mystery{
		Killer: Suspects[g.intN(len(Suspects))],
		Weapon: Weapons[g.intN(len(Weapons))],
		Motive: Motives[g.intN(len(Motives))],
	}
}

func (g *Generator) intN(n int) int {
	if g.rng == nil {
		return rand.IntN(n) //nolint:gosec // game content does not need a cryptographic source.
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}
