package knowledge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed provides the default knowledge base used when nothing is stored yet.
func Seed() []Item {
	return []Item{
		{
			ID:      "1",
			Topic:   "Shipping Policy",
			Content: "Standard shipping takes 3-5 business days. Express shipping takes 1-2 business days. Free shipping is available on orders over $50.",
		},
		{
			ID:      "2",
			Topic:   "Return Policy",
			Content: "Items can be returned within 30 days of purchase. Must be in original condition with tags. Refunds are processed within 7-10 business days.",
		},
		{
			ID:      "3",
			Topic:   "Working Hours",
			Content: "Our support team is available Monday to Friday, from 9 AM to 6 PM EST. We are closed on weekends and public holidays.",
		},
	}
}

type seedFile struct {
	Items []Item `yaml:"items"`
}

// LoadFile reads a YAML knowledge file of the form `items: [...]` and
// validates every entry.
func LoadFile(path string) ([]Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML knowledge content.
func Parse(raw []byte) ([]Item, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode knowledge yaml: %w", err)
	}

	items := make([]Item, 0, len(file.Items))
	for idx, item := range file.Items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("knowledge entry %d: %w", idx+1, err)
		}
		items = append(items, item.Normalize())
	}
	return items, nil
}
