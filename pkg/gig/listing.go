package gig

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/cgast/gigsmith/pkg/orchestrator"
	"github.com/cgast/gigsmith/pkg/verify"
)

// Package is one pricing tier.
type Package struct {
	Name         string  `mapstructure:"name" json:"name"`
	Description  string  `mapstructure:"description" json:"description"`
	Price        float64 `mapstructure:"price" json:"price"`
	DeliveryDays int     `mapstructure:"delivery_days" json:"delivery_days"`
	Revisions    int     `mapstructure:"revisions" json:"revisions"`
}

// Packages holds the three tiers, cheapest first.
type Packages struct {
	Basic    Package `mapstructure:"basic" json:"basic"`
	Standard Package `mapstructure:"standard" json:"standard"`
	Premium  Package `mapstructure:"premium" json:"premium"`
}

type FAQ struct {
	Question string `mapstructure:"question" json:"question"`
	Answer   string `mapstructure:"answer" json:"answer"`
}

// Competitor is a seller profile the pricing was anchored on.
type Competitor struct {
	Name    string  `mapstructure:"name" json:"name"`
	Price   float64 `mapstructure:"price" json:"price"`
	Rating  float64 `mapstructure:"rating" json:"rating"`
	Reviews int     `mapstructure:"reviews" json:"reviews"`
}

// Listing is the composed gig.
type Listing struct {
	Title        string       `mapstructure:"title" json:"title"`
	Category     string       `mapstructure:"category" json:"category"`
	Subcategory  string       `mapstructure:"subcategory" json:"subcategory"`
	Tags         []string     `mapstructure:"tags" json:"tags"`
	Packages     Packages     `mapstructure:"packages" json:"packages"`
	Description  string       `mapstructure:"description" json:"description"`
	FAQs         []FAQ        `mapstructure:"faqs" json:"faqs"`
	Requirements []string     `mapstructure:"requirements" json:"requirements"`
	Images       []string     `mapstructure:"images" json:"images"`
	Competitors  []Competitor `mapstructure:"-" json:"competitors"`
}

// Compose assembles a listing from the task values of a run.
func Compose(res *orchestrator.Result) (*Listing, error) {
	flat := map[string]any{}
	for _, id := range []string{TaskCategory, TaskTitle, TaskTags, TaskDescription, TaskRequirements, TaskImages} {
		for k, v := range res.Value(id) {
			flat[k] = v
		}
	}
	for _, key := range []string{"tags", "requirements", "images"} {
		flat[key] = strs(flat[key])
	}
	flat["packages"] = map[string]any(res.Value(TaskPricing))
	flat["faqs"] = objects(res.Value(TaskFAQs)["faqs"], "question", "answer")

	var l Listing
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &l,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(flat); err != nil {
		return nil, fmt.Errorf("compose listing: %w", err)
	}
	l.Competitors = competitors(res.Value(TaskCompetitors)["competitors"])
	return &l, nil
}

// strs flattens a list to strings. Objects contribute their name.
func strs(v any) []string {
	list, _ := verify.AsSlice(v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			if name, ok := m["name"]; ok {
				item = name
			}
		}
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// competitors reads seller profiles leniently: generated prices and
// ratings arrive as numbers or as strings like "$45".
func competitors(v any) []Competitor {
	out := []Competitor{}
	for _, item := range objects(v, "name", "") {
		m := item.(map[string]any)
		c := Competitor{Name: fmt.Sprint(m["name"])}
		if p, ok := priceOf(m["price"]); ok {
			c.Price = p.InexactFloat64()
		}
		if r, ok := priceOf(m["rating"]); ok {
			c.Rating = r.InexactFloat64()
		}
		if n, ok := priceOf(m["reviews"]); ok {
			c.Reviews = int(n.IntPart())
		}
		out = append(out, c)
	}
	return out
}

// objects turns plain string entries into objects so that lists filled
// generically decode into structs. The string goes under key, and under
// rest when rest is set.
func objects(v any, key, rest string) []any {
	list, _ := verify.AsSlice(v)
	out := make([]any, 0, len(list))
	for _, item := range list {
		switch x := item.(type) {
		case map[string]any:
			out = append(out, x)
		case verify.Document:
			out = append(out, map[string]any(x))
		default:
			s := fmt.Sprint(x)
			m := map[string]any{key: s}
			if rest != "" {
				m[rest] = s
			}
			out = append(out, m)
		}
	}
	return out
}
