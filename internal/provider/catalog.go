package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"habitat/internal/model"
)

// Catalog is an offline topic source read from YAML:
//
//	seeds:
//	  - title: Deep Sea
//	    description: Life below the thermocline
//	topics:
//	  deep sea:
//	    - title: Anglerfish
//	      description: ...
//
// Lookups ignore case. When the catalog runs out of unused topics for a
// seed, the remainder is filled with facets of the seed.
type Catalog struct {
	Seeds  []model.Topic            `yaml:"seeds"`
	Topics map[string][]model.Topic `yaml:"topics"`
}

var facets = []string{
	"History", "Science", "Culture", "Mysteries", "Future", "People",
	"Places", "Controversies", "Origins", "Technology", "Art", "Economics",
	"Myths", "Ecology", "Philosophy", "Language",
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	normalized := make(map[string][]model.Topic, len(c.Topics))
	for k, v := range c.Topics {
		key := normalize(k)
		normalized[key] = append(normalized[key], v...)
	}
	c.Topics = normalized
	return &c, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RequestTopics returns exactly req.Count topics not listed in req.Exclude.
// An empty seed draws from the seed list.
func (c *Catalog) RequestTopics(ctx context.Context, req Request) ([]model.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(req.Exclude))
	for _, e := range req.Exclude {
		used[normalize(e)] = true
	}

	candidates := c.Seeds
	if req.Seed != "" {
		candidates = c.Topics[normalize(req.Seed)]
	}

	out := make([]model.Topic, 0, req.Count)
	take := func(t model.Topic) {
		key := normalize(t.Title)
		if len(out) >= req.Count || key == "" || used[key] {
			return
		}
		used[key] = true
		out = append(out, t)
	}
	for _, t := range candidates {
		take(t)
	}

	subject := req.Seed
	if subject == "" {
		subject = "Curiosity"
	}
	for round := 0; len(out) < req.Count; round++ {
		for _, f := range facets {
			title := subject + ": " + f
			if round > 0 {
				title = fmt.Sprintf("%s: %s %d", subject, f, round+1)
			}
			take(model.Topic{
				Title:       title,
				Description: fmt.Sprintf("The %s of %s.", strings.ToLower(f), subject),
			})
		}
	}
	return out, nil
}
