package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_EmbeddedTable(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if len(c.Cards) != 50 {
		t.Fatalf("cards=%d want=50", len(c.Cards))
	}
	if c.Digest == "" {
		t.Fatalf("expected digest")
	}
	again, _ := Default()
	if again != c {
		t.Fatalf("Default should return the same instance")
	}

	memes, exploits, err := c.CountDeck(c.DefaultDeck)
	if err != nil {
		t.Fatalf("count default deck: %v", err)
	}
	if len(c.DefaultDeck) != 12 || memes != 4 || exploits != 8 {
		t.Fatalf("default deck len=%d memes=%d exploits=%d", len(c.DefaultDeck), memes, exploits)
	}
}

func TestLookup_Blueprints(t *testing.T) {
	c := MustDefault()

	dh, ok := c.Lookup("c05")
	if !ok || dh.Meme == nil {
		t.Fatalf("c05 missing")
	}
	if dh.Meme.ShieldAmount() != 2 {
		t.Fatalf("Diamond Hands shield=%d want=2", dh.Meme.ShieldAmount())
	}

	gk, _ := c.Lookup("m04")
	if mc, ok := GatekeeperMaxCost(gk.Meme.Keywords); !ok || mc != 3 {
		t.Fatalf("AutoMod gatekeeper=%d,%v", mc, ok)
	}

	rb, _ := c.Lookup("t01")
	if rb.Exploit == nil || rb.Exploit.Kind != ExploitDamage || rb.Exploit.Amount != 3 || rb.Exploit.Target == nil {
		t.Fatalf("Review Bomb effect: %+v", rb.Exploit)
	}

	if _, ok := c.Lookup("zz9"); ok {
		t.Fatalf("unexpected card zz9")
	}
	if _, _, err := c.CountDeck([]string{"n01", "zz9"}); err == nil {
		t.Fatalf("expected unknown card error")
	}
}

func TestParse_RejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"dup":       `{"cards":[{"id":"a","name":"A","cost":1,"class":"meme","meme":{"base_virality":1,"cook_rate":1,"yield_rate":1}},{"id":"a","name":"A","cost":1,"class":"meme","meme":{"base_virality":1,"cook_rate":1,"yield_rate":1}}]}`,
		"keyword":   `{"cards":[{"id":"a","name":"A","cost":1,"class":"meme","meme":{"base_virality":1,"cook_rate":1,"yield_rate":1,"keywords":[{"kind":"flying"}]}}]}`,
		"exploit":   `{"cards":[{"id":"a","name":"A","cost":1,"class":"exploit","exploit":{"kind":"teleport"}}]}`,
		"spawn_ref": `{"cards":[{"id":"a","name":"A","cost":1,"class":"meme","meme":{"base_virality":1,"cook_rate":1,"yield_rate":1,"abilities":[{"trigger":"on_post","effect":{"kind":"spawn","spawn":{"variant_id":"zz","count":1,"location":"hand"}}}]}}]}`,
		"deck":      `{"default_deck":["zz"],"cards":[]}`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestLoad_OverrideFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cards.json")
	raw := []byte(`{"version":2,"default_deck":["a"],"cards":[{"id":"a","name":"A","cost":1,"class":"meme","meme":{"base_virality":3,"cook_rate":1,"yield_rate":1}}]}`)
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Version != 2 || len(c.Cards) != 1 {
		t.Fatalf("unexpected catalog: version=%d cards=%d", c.Version, len(c.Cards))
	}
	if c.Digest == MustDefault().Digest {
		t.Fatalf("override should have its own digest")
	}
}
