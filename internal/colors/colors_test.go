package colors

import "testing"

type memStore struct {
	sets map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{sets: make(map[string]map[string]string)}
}

func (m *memStore) ColorSet(set string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range m.sets[set] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) AssignColor(set, key, color string) (string, error) {
	if m.sets[set] == nil {
		m.sets[set] = make(map[string]string)
	}
	if c, ok := m.sets[set][key]; ok {
		return c, nil
	}
	m.sets[set][key] = color
	return color, nil
}

func TestNamespaceFor(t *testing.T) {
	if ns := For(7, "partisan_code"); !ns.IsGlobal() || ns.Set() != "partisan_code" {
		t.Errorf("expected global namespace, got %+v", ns)
	}
	if ns := For(7, "publication_country"); ns.IsGlobal() || ns.Set() != "topic_7_publication_country" {
		t.Errorf("expected topic-scoped namespace, got %+v (%s)", ns, ns.Set())
	}
}

func TestColorForIsStable(t *testing.T) {
	a := NewAssigner(newMemStore())
	ns := TopicScoped(1, "media_region")

	c1, err := a.ColorFor(ns, "north")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, _ := a.ColorFor(ns, "north")
	if c1 != c2 {
		t.Errorf("expected same color, got %s and %s", c1.Hex(), c2.Hex())
	}

	other, _ := a.ColorFor(ns, "south")
	if other == c1 {
		t.Error("expected distinct colors for distinct values")
	}
}

func TestColorForScopesByTopic(t *testing.T) {
	store := newMemStore()
	a := NewAssigner(store)

	a.ColorFor(TopicScoped(1, "region"), "north")
	a.ColorFor(TopicScoped(2, "region"), "north")
	if len(store.sets) != 2 {
		t.Errorf("expected one color set per topic, got %d", len(store.sets))
	}

	a.ColorFor(For(1, "media_type"), "blog")
	a.ColorFor(For(2, "media_type"), "blog")
	if len(store.sets["media_type"]) != 1 {
		t.Errorf("expected global set shared across topics, got %v", store.sets["media_type"])
	}
}

func TestColorForPartisanScale(t *testing.T) {
	store := newMemStore()
	a := NewAssigner(store)

	c, err := a.ColorFor(Global("partisan_code"), "Center-Left")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Hex() != "9aa8e8" {
		t.Errorf("expected fixed center-left color, got %s", c.Hex())
	}
	if len(store.sets) != 0 {
		t.Error("fixed partisan colors should not be stored")
	}
}

func TestColorForUsesStoredColor(t *testing.T) {
	store := newMemStore()
	store.AssignColor("topic_3_region", "east", "123456")
	a := NewAssigner(store)

	c, _ := a.ColorFor(TopicScoped(3, "region"), "east")
	if c.Hex() != "123456" {
		t.Errorf("expected stored color, got %s", c.Hex())
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#ff8000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != (RGB{R: 255, G: 128, B: 0}) {
		t.Errorf("unexpected color %+v", c)
	}
	if _, err := ParseHex("fff"); err == nil {
		t.Error("expected error for short color")
	}
}
