package knowledge

import (
	"errors"
	"testing"
)

func TestHasButtonRequiresBothFields(t *testing.T) {
	cases := []struct {
		name string
		item Item
		want bool
	}{
		{"both", Item{ButtonName: "Track", ButtonURL: "https://shop.example/track"}, true},
		{"name only", Item{ButtonName: "Track"}, false},
		{"url only", Item{ButtonURL: "https://shop.example/track"}, false},
		{"whitespace", Item{ButtonName: "  ", ButtonURL: "https://shop.example/track"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.HasButton(); got != tc.want {
				t.Fatalf("HasButton() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateRejectsPartialButton(t *testing.T) {
	err := Item{Topic: "Tracking", ButtonURL: "https://shop.example/track"}.Validate()
	if !errors.Is(err, ErrPartialButton) {
		t.Fatalf("expected ErrPartialButton, got %v", err)
	}

	if err := (Item{Content: "no topic"}).Validate(); !errors.Is(err, ErrTopicRequired) {
		t.Fatalf("expected ErrTopicRequired, got %v", err)
	}
}

func TestButtonURLsSkipsEmpty(t *testing.T) {
	urls := ButtonURLs([]Item{
		{ButtonURL: " https://a.example "},
		{},
		{ButtonName: "B", ButtonURL: "https://b.example"},
	})

	if len(urls) != 2 || urls[0] != "https://a.example" || urls[1] != "https://b.example" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestParseYAML(t *testing.T) {
	raw := []byte(`
items:
  - id: track
    topic: Order Tracking
    content: Track orders from your account page.
    buttonName: Track Order
    buttonUrl: https://shop.example/track
  - id: hours
    topic: Working Hours
    content: Monday to Friday.
`)

	items, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse err: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if !items[0].HasButton() || items[1].HasButton() {
		t.Fatalf("unexpected button flags: %+v", items)
	}
}

func TestParseYAMLRejectsInvalidEntry(t *testing.T) {
	raw := []byte("items:\n  - topic: Broken\n    buttonName: Only Name\n")
	if _, err := Parse(raw); !errors.Is(err, ErrPartialButton) {
		t.Fatalf("expected ErrPartialButton, got %v", err)
	}
}

func TestMemoryStoreReplace(t *testing.T) {
	store := NewMemoryStore(Seed())
	if len(store.List()) != 3 {
		t.Fatalf("expected seeded store")
	}

	store.Replace([]Item{{ID: "x", Topic: "X"}})
	if _, ok := store.FindByID("x"); !ok {
		t.Fatal("expected replaced item to be found")
	}
	if _, ok := store.FindByID("1"); ok {
		t.Fatal("expected seed item to be gone")
	}
}
