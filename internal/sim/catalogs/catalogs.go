package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"memewars.gg/internal/sim/model"
)

//go:embed cards.json
var embeddedCards []byte

type CardClass string

const (
	ClassMeme    CardClass = "meme"
	ClassExploit CardClass = "exploit"
)

type CardDef struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Cost        int            `json:"cost"`
	Description string         `json:"description,omitempty"`
	Class       CardClass      `json:"class"`
	Meme        *MemeBlueprint `json:"meme,omitempty"`
	Exploit     *ExploitEffect `json:"exploit,omitempty"`
}

type MemeBlueprint struct {
	BaseVirality  int       `json:"base_virality"`
	CookRate      int       `json:"cook_rate"`
	YieldRate     int       `json:"yield_rate"`
	Keywords      []Keyword `json:"keywords,omitempty"`
	Abilities     []Ability `json:"abilities,omitempty"`
	Volatile      int       `json:"volatile,omitempty"`
	InitialFreeze int       `json:"initial_freeze,omitempty"`
}

// Catalog is immutable after Load; callers share it freely.
type Catalog struct {
	Version     int
	Cards       []CardDef
	ByID        map[string]CardDef
	DefaultDeck []string
	Digest      string
	// Raw is the source the digest was taken over.
	Raw []byte
}

type catalogFile struct {
	Version     int       `json:"version"`
	DefaultDeck []string  `json:"default_deck"`
	Cards       []CardDef `json:"cards"`
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Parse(embeddedCards)
})

// Default returns the embedded card table. It is parsed once per process.
func Default() (*Catalog, error) { return defaultCatalog() }

// MustDefault is for tests and binaries that cannot run without the embedded table.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads an override catalog. An empty path returns the embedded one.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("cards.json: %w", err)
	}
	c := &Catalog{
		Version:     f.Version,
		Cards:       f.Cards,
		ByID:        make(map[string]CardDef, len(f.Cards)),
		DefaultDeck: f.DefaultDeck,
		Digest:      sha256Hex(raw),
		Raw:         raw,
	}
	for _, d := range f.Cards {
		if d.ID == "" {
			return nil, fmt.Errorf("card with empty id")
		}
		if _, dup := c.ByID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate card id: %s", d.ID)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("card %s: %w", d.ID, err)
		}
		c.ByID[d.ID] = d
	}
	for _, d := range f.Cards {
		if err := c.checkReferences(d); err != nil {
			return nil, fmt.Errorf("card %s: %w", d.ID, err)
		}
	}
	for _, id := range f.DefaultDeck {
		if _, ok := c.ByID[id]; !ok {
			return nil, fmt.Errorf("default_deck: unknown card %s", id)
		}
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (CardDef, bool) {
	if c == nil {
		return CardDef{}, false
	}
	d, ok := c.ByID[id]
	return d, ok
}

// CountDeck reports how many memes and exploits a list of card ids contains.
func (c *Catalog) CountDeck(ids []string) (memes, exploits int, err error) {
	for _, id := range ids {
		d, ok := c.Lookup(id)
		if !ok {
			return 0, 0, &UnknownCardError{ID: id}
		}
		switch d.Class {
		case ClassMeme:
			memes++
		case ClassExploit:
			exploits++
		}
	}
	return memes, exploits, nil
}

type UnknownCardError struct{ ID string }

func (e *UnknownCardError) Error() string { return "card not found: " + e.ID }

func (d CardDef) Validate() error {
	if d.Cost < 0 {
		return fmt.Errorf("negative cost %d", d.Cost)
	}
	switch d.Class {
	case ClassMeme:
		if d.Meme == nil || d.Exploit != nil {
			return fmt.Errorf("meme card needs exactly a meme blueprint")
		}
		for _, k := range d.Meme.Keywords {
			if err := k.Validate(); err != nil {
				return err
			}
		}
		for _, a := range d.Meme.Abilities {
			if err := a.Validate(); err != nil {
				return err
			}
		}
	case ClassExploit:
		if d.Exploit == nil || d.Meme != nil {
			return fmt.Errorf("exploit card needs exactly an exploit effect")
		}
		return d.Exploit.Validate()
	default:
		return fmt.Errorf("unknown class %q", d.Class)
	}
	return nil
}

func (c *Catalog) checkReferences(d CardDef) error {
	if d.Meme == nil {
		return nil
	}
	for _, a := range d.Meme.Abilities {
		if a.Effect.Kind != EffectSpawn || a.Effect.Spawn == nil {
			continue
		}
		ref, ok := c.ByID[a.Effect.Spawn.VariantID]
		if !ok {
			return fmt.Errorf("spawn references unknown card %s", a.Effect.Spawn.VariantID)
		}
		if ref.Class != ClassMeme {
			return fmt.Errorf("spawn references non-meme card %s", ref.ID)
		}
	}
	return nil
}

// ShieldAmount returns the shielded keyword amount, or 0.
func (b MemeBlueprint) ShieldAmount() int {
	for _, k := range b.Keywords {
		if k.Kind == KeywordShielded {
			return k.Amount
		}
	}
	return 0
}

func DefaultTargetOf(e ExploitEffect) *model.Target {
	if e.Target == nil {
		return nil
	}
	t := *e.Target
	return &t
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
