package gig

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/gigsmith/pkg/orchestrator"
	"github.com/cgast/gigsmith/pkg/synth"
	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

func validValues() map[string]verify.Document {
	return map[string]verify.Document{
		TaskCategory: {"category": "Graphics & Design", "subcategory": "Logo Design"},
		TaskTitle:    {"title": "I will design a modern minimalist logo"},
		TaskTags:     {"tags": []any{"logo design", "minimalist logo", "brand identity", "logo maker", "business logo"}},
		TaskCompetitors: {"competitors": []any{
			map[string]any{"name": "Pixel Studio", "price": 40.0, "rating": 4.9, "reviews": 120.0},
			map[string]any{"name": "Logo Lab", "price": "$60", "rating": "4.7", "reviews": 48.0},
		}},
		TaskPricing: {
			"basic":    map[string]any{"name": "Basic", "description": "One concept", "price": 30.0, "delivery_days": 3.0, "revisions": 1.0},
			"standard": map[string]any{"name": "Standard", "description": "Two concepts", "price": 60.0, "delivery_days": 4.0, "revisions": 3.0},
			"premium":  map[string]any{"name": "Premium", "description": "Full brand kit", "price": 120.0, "delivery_days": 7.0, "revisions": 5.0},
		},
		TaskDescription:  {"description": "## Modern logos\n\n- Vector files\n- Unlimited ideas"},
		TaskFAQs:         {"faqs": []any{map[string]any{"question": "Do I get source files?", "answer": "Yes."}, map[string]any{"question": "How fast?", "answer": "Three days."}}},
		TaskRequirements: {"requirements": []any{"Brand name", "Colors", "Examples you like"}},
		TaskImages:       {"images": []any{}},
	}
}

// scripted answers from a fixed table; overrides replace single tasks and
// failing tasks return an error. Prompts are kept per task.
type scripted struct {
	values  map[string]verify.Document
	failing map[string]bool
	calls   atomic.Int32
	prompts sync.Map
}

func newScripted() *scripted {
	return &scripted{values: validValues(), failing: map[string]bool{}}
}

func (s *scripted) Generate(_ context.Context, req task.Request) (verify.Document, error) {
	s.calls.Add(1)
	s.prompts.Store(req.TaskID, req.Prompt)
	if s.failing[req.TaskID] {
		return nil, errors.New("capability error")
	}
	return verify.Clone(s.values[req.TaskID]), nil
}

func (s *scripted) prompt(taskID string) string {
	v, _ := s.prompts.Load(taskID)
	p, _ := v.(string)
	return p
}

func newService(t *testing.T, gen task.Generator, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{
		WithSynthOptions(synth.WithSeed(42)),
		WithRunnerOptions(task.WithRetry(1, time.Millisecond)),
	}, opts...)
	svc, err := NewService(gen, opts...)
	require.NoError(t, err)
	return svc
}

func assertListingValid(t *testing.T, l *Listing) {
	t.Helper()
	require.NotNil(t, l)
	assert.True(t, strings.HasPrefix(l.Title, "I will "), "title %q", l.Title)
	assert.Contains(t, CategoryNames(), l.Category)
	assert.NotEmpty(t, l.Subcategory)
	assert.Len(t, l.Tags, TagCount)
	assert.NotEmpty(t, l.Description)

	p := l.Packages
	assert.Less(t, p.Basic.Price, p.Standard.Price)
	assert.Less(t, p.Standard.Price, p.Premium.Price)
	for _, pkg := range []Package{p.Basic, p.Standard, p.Premium} {
		assert.NotEmpty(t, pkg.Name)
		assert.NotEmpty(t, pkg.Description)
		assert.GreaterOrEqual(t, pkg.Price, float64(MinPrice))
		assert.LessOrEqual(t, pkg.Price, float64(MaxPrice))
		assert.GreaterOrEqual(t, pkg.DeliveryDays, MinDelivery)
		assert.LessOrEqual(t, pkg.DeliveryDays, MaxDelivery)
		assert.LessOrEqual(t, pkg.Revisions, MaxRevisions)
	}

	assert.GreaterOrEqual(t, len(l.FAQs), MinFAQs)
	assert.LessOrEqual(t, len(l.FAQs), MaxFAQs)
	for _, f := range l.FAQs {
		assert.NotEmpty(t, f.Question)
		assert.NotEmpty(t, f.Answer)
	}
	assert.GreaterOrEqual(t, len(l.Requirements), MinRequirements)
	assert.LessOrEqual(t, len(l.Requirements), MaxRequirements)
	assert.LessOrEqual(t, len(l.Images), MaxImages)
	assert.GreaterOrEqual(t, len(l.Competitors), MinCompetitors)
}

func TestCatalogueBuilds(t *testing.T) {
	g, err := orchestrator.BuildGraph(Catalogue())
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{TaskCategory, TaskTitle, TaskTags, TaskCompetitors},
		{TaskPricing, TaskDescription, TaskImages},
		{TaskFAQs, TaskRequirements},
	}, g.Stages())

	params := g.RequestParams()
	require.Len(t, params, 1)
	assert.Equal(t, "keyword", params[0].Name)
}

func TestGenerateAllValid(t *testing.T) {
	gen := newScripted()
	resp := newService(t, gen).Generate(context.Background(), Request{Keyword: "logo design"})

	require.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.RunID)
	assert.Empty(t, resp.Repaired)
	assertListingValid(t, resp.Listing)

	l := resp.Listing
	assert.Equal(t, "I will design a modern minimalist logo", l.Title)
	assert.Equal(t, 60.0, l.Packages.Standard.Price)
	assert.Equal(t, 4, l.Packages.Standard.DeliveryDays)
	assert.Equal(t, FAQ{Question: "Do I get source files?", Answer: "Yes."}, l.FAQs[0])
	assert.Equal(t, Competitor{Name: "Logo Lab", Price: 60, Rating: 4.7, Reviews: 48}, l.Competitors[1])
	assert.Empty(t, l.Images)
	assert.Equal(t, int32(len(Catalogue())), gen.calls.Load())
	assert.Contains(t, gen.prompt(TaskDescription), l.Title)
}

func TestGenerateTopsUpTags(t *testing.T) {
	gen := newScripted()
	gen.values[TaskTags] = verify.Document{"tags": []any{"logo design", "minimalist logo", "brand identity"}}

	resp := newService(t, gen).Generate(context.Background(), Request{Keyword: "logo design"})
	require.Empty(t, resp.Error)
	assert.Equal(t, []string{TaskTags}, resp.Repaired)

	tags := resp.Listing.Tags
	require.Len(t, tags, TagCount)
	assert.Equal(t, []string{"logo design", "minimalist logo", "brand identity"}, tags[:3])
	seen := map[string]bool{}
	for _, tag := range tags {
		assert.False(t, seen[tag], "duplicate tag %q", tag)
		seen[tag] = true
	}
}

func TestGenerateCategoryFailure(t *testing.T) {
	gen := newScripted()
	gen.failing[TaskCategory] = true
	gen.values[TaskPricing] = verify.Document{
		"basic":    map[string]any{"name": "Basic", "description": "a", "price": 50.0, "delivery_days": 3.0, "revisions": 1.0},
		"standard": map[string]any{"name": "Standard", "description": "b", "price": 40.0, "delivery_days": 3.0, "revisions": 1.0},
		"premium":  map[string]any{"name": "Premium", "description": "c", "price": 30.0, "delivery_days": 3.0, "revisions": 1.0},
	}

	resp := newService(t, gen).Generate(context.Background(), Request{Keyword: "logo design"})
	require.Empty(t, resp.Error)
	assert.Equal(t, []string{TaskCategory, TaskPricing}, resp.Repaired)
	assertListingValid(t, resp.Listing)

	assert.Equal(t, "Graphics & Design", resp.Listing.Category)
	assert.Contains(t, gen.prompt(TaskPricing), "Graphics & Design")
	// Package names and descriptions were valid and survive the repair.
	assert.Equal(t, "Basic", resp.Listing.Packages.Basic.Name)
}

func TestGenerateRepairsNonTextValues(t *testing.T) {
	gen := newScripted()
	gen.values[TaskCategory] = verify.Document{"category": "Graphics & Design", "subcategory": []any{"Logo Design", "Branding"}}
	gen.values[TaskDescription] = verify.Document{"description": map[string]any{"intro": "hi"}}

	resp := newService(t, gen).Generate(context.Background(), Request{Keyword: "logo design"})
	require.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.RunID)
	assert.ElementsMatch(t, []string{TaskCategory, TaskDescription}, resp.Repaired)
	assertListingValid(t, resp.Listing)
	assert.Equal(t, "Graphics & Design", resp.Listing.Category)
}

func TestGenerateAnswersEveryFAQ(t *testing.T) {
	gen := newScripted()
	gen.values[TaskFAQs] = verify.Document{"faqs": []any{
		map[string]any{"question": "a?"},
		map[string]any{"question": "b?"},
	}}

	resp := newService(t, gen).Generate(context.Background(), Request{Keyword: "logo design"})
	require.Empty(t, resp.Error)
	assert.Equal(t, []string{TaskFAQs}, resp.Repaired)
	assertListingValid(t, resp.Listing)

	faqs := resp.Listing.FAQs
	require.Len(t, faqs, 2)
	assert.Equal(t, "a?", faqs[0].Question)
	assert.Equal(t, "b?", faqs[1].Question)
}

func TestGenerateListLengths(t *testing.T) {
	lists := []struct {
		task, field string
		min, max    int
		item        func(i int) any
	}{
		{TaskTags, "tags", TagCount, TagCount, func(i int) any { return fmt.Sprintf("tag %d", i) }},
		{TaskFAQs, "faqs", MinFAQs, MaxFAQs, func(i int) any {
			return map[string]any{"question": fmt.Sprintf("Question %d?", i), "answer": "Yes."}
		}},
		{TaskCompetitors, "competitors", MinCompetitors, MaxCompetitors, func(i int) any {
			return map[string]any{"name": fmt.Sprintf("Seller %d", i), "price": 40.0, "rating": 4.5, "reviews": 10.0}
		}},
	}
	for _, l := range lists {
		for _, n := range []int{0, 1, l.min - 1, l.min, l.max, l.max + 1, 2 * l.max} {
			t.Run(fmt.Sprintf("%s/%d", l.field, n), func(t *testing.T) {
				items := make([]any, n)
				for i := range items {
					items[i] = l.item(i + 1)
				}
				gen := newScripted()
				gen.values[l.task] = verify.Document{l.field: items}

				resp := newService(t, gen).Generate(context.Background(), Request{Keyword: "logo design"})
				require.Empty(t, resp.Error)
				assertListingValid(t, resp.Listing)

				inBounds := n >= l.min && n <= l.max
				assert.Equal(t, !inBounds, slices.Contains(resp.Repaired, l.task), "repaired %v", resp.Repaired)

				var got int
				switch l.task {
				case TaskTags:
					got = len(resp.Listing.Tags)
				case TaskFAQs:
					got = len(resp.Listing.FAQs)
				case TaskCompetitors:
					got = len(resp.Listing.Competitors)
				}
				assert.Equal(t, min(max(n, l.min), l.max), got)
			})
		}
	}
}

func TestGenerateComposeFailureHasNoRunID(t *testing.T) {
	// A catalogue whose description accepts any value lets an object reach
	// the listing decoder.
	specs := Catalogue()
	for i := range specs {
		if specs[i].ID == TaskDescription {
			specs[i].Constraints = verify.ConstraintSet{verify.Required("description")}
		}
	}
	gen := newScripted()
	gen.values[TaskDescription] = verify.Document{"description": map[string]any{"intro": "hi"}}
	store := &memStore{}

	resp := newService(t, gen, WithSpecs(specs), WithStore(store)).Generate(context.Background(), Request{Keyword: "logo design"})
	assert.Contains(t, resp.Error, "compose listing")
	assert.Empty(t, resp.RunID)
	assert.Nil(t, resp.Listing)
	assert.Empty(t, store.runs)
}

func TestGenerateEverythingFails(t *testing.T) {
	gen := newScripted()
	for _, s := range Catalogue() {
		gen.failing[s.ID] = true
	}

	resp := newService(t, gen).Generate(context.Background(), Request{Keyword: "wordpress website"})
	require.Empty(t, resp.Error)
	assert.Len(t, resp.Repaired, len(Catalogue()))
	assertListingValid(t, resp.Listing)
	assert.Equal(t, "Programming & Tech", resp.Listing.Category)
}

func TestGenerateWithoutGenerator(t *testing.T) {
	resp := newService(t, nil).Generate(context.Background(), Request{Keyword: "podcast audio"})
	require.Empty(t, resp.Error)
	assertListingValid(t, resp.Listing)
	assert.Equal(t, "Music & Audio", resp.Listing.Category)
	assert.Equal(t, "Podcast Editing", resp.Listing.Subcategory)
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	a := newService(t, nil).Generate(context.Background(), Request{Keyword: "video editing"})
	b := newService(t, nil).Generate(context.Background(), Request{Keyword: "video editing"})
	require.Empty(t, a.Error)
	assert.Equal(t, a.Listing, b.Listing)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestGenerateInvalidRequest(t *testing.T) {
	tests := []struct {
		keyword string
		want    string
	}{
		{"", "keyword is required"},
		{"   ", "keyword is required"},
		{"x", "keyword must be at least 2 characters"},
		{strings.Repeat("a", 121), "keyword must be at most 120 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			gen := newScripted()
			resp := newService(t, gen).Generate(context.Background(), Request{Keyword: tt.keyword})
			assert.Contains(t, resp.Error, tt.want)
			assert.Nil(t, resp.Listing)
			assert.Empty(t, resp.RunID)
			assert.Zero(t, gen.calls.Load())
		})
	}
}

type memStore struct {
	mu   sync.Mutex
	runs []*orchestrator.Result
	err  error
}

func (m *memStore) Record(res *orchestrator.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, res)
	return m.err
}

func TestGenerateRecordsRun(t *testing.T) {
	store := &memStore{}
	resp := newService(t, nil, WithStore(store)).Generate(context.Background(), Request{Keyword: "seo audit"})
	require.Empty(t, resp.Error)
	require.Len(t, store.runs, 1)
	assert.Equal(t, resp.RunID, store.runs[0].RunID)

	store.err = errors.New("disk full")
	resp = newService(t, nil, WithStore(store)).Generate(context.Background(), Request{Keyword: "seo audit"})
	assert.Empty(t, resp.Error)
}

func TestNewServiceRejectsBrokenCatalogue(t *testing.T) {
	specs := Catalogue()
	specs[0].DependsOn = []string{TaskPricing}
	_, err := NewService(nil, WithSpecs(specs))
	assert.ErrorIs(t, err, orchestrator.ErrCycle)
}

func TestClassify(t *testing.T) {
	tests := map[string]string{
		"logo design":         "Graphics & Design",
		"wordpress website":   "Programming & Tech",
		"seo audit":           "Digital Marketing",
		"blog article":        "Writing & Translation",
		"youtube intro":       "Video & Animation",
		"voice over":          "Music & Audio",
		"underwater juggling": "Business",
	}
	for kw, want := range tests {
		assert.Equal(t, want, classify(kw).Name, kw)
	}
}

func TestTierPrices(t *testing.T) {
	tests := []struct {
		anchor int64
		want   []int64
	}{
		{50, []int64{30, 55, 110}},
		{1, []int64{5, 6, 7}},
		{1_000_000, []int64{9998, 9999, 10000}},
	}
	for _, tt := range tests {
		got := TierPrices(decimal.NewFromInt(tt.anchor))
		require.Len(t, got, 3)
		for i := range got {
			assert.True(t, got[i].Equal(decimal.NewFromInt(tt.want[i])), "anchor %d tier %d: %s", tt.anchor, i, got[i])
		}
	}
}

func TestAnchorPrice(t *testing.T) {
	base := decimal.NewFromInt(75)
	competitors := []any{
		map[string]any{"price": 40.0},
		map[string]any{"price": "$60"},
		map[string]any{"price": "call me"},
		"Some Seller",
	}
	assert.True(t, anchorPrice(competitors, base).Equal(decimal.NewFromInt(50)))
	assert.True(t, anchorPrice(nil, base).Equal(base))
}

func TestFallbackContentIsValid(t *testing.T) {
	s := synth.New(append(Fallbacks(), synth.WithSeed(3))...)
	inputs := map[string]any{
		"keyword":     "logo design",
		"title":       "I will design your logo",
		"category":    "Graphics & Design",
		"description": "## Logos",
		"competitors": []any{map[string]any{"price": 80.0}},
	}
	for _, spec := range Catalogue() {
		doc := s.Synthesize(spec.ID, inputs, spec.Constraints, nil)
		assert.True(t, verify.Validate(doc, spec.Constraints).Valid(), spec.ID)
	}

	pricing := s.Synthesize(TaskPricing, inputs, pricingSpec().Constraints, nil)
	basic, _ := verify.Get(pricing, "basic.price")
	assert.Equal(t, 48.0, basic)
}

func TestImagesContent(t *testing.T) {
	doc := imagesContent(synth.Request{Inputs: map[string]any{"keyword": "Logo Design!"}, Rand: rand.New(rand.NewPCG(1, 2))})
	assert.Equal(t, []any{"logo-design-cover.png", "logo-design-sample.png", "logo-design-process.png"}, doc["images"])
}

func TestComposeLenient(t *testing.T) {
	res := &orchestrator.Result{Outputs: map[string]task.Output{}}
	for id, v := range validValues() {
		res.Outputs[id] = task.Output{TaskID: id, Value: v}
	}
	res.Outputs[TaskFAQs] = task.Output{Value: verify.Document{"faqs": []any{"Is it fast?", map[string]any{"question": "Q", "answer": "A"}}}}
	res.Outputs[TaskCompetitors] = task.Output{Value: verify.Document{"competitors": []any{"Anon Seller"}}}
	res.Outputs[TaskTags] = task.Output{Value: verify.Document{"tags": []any{map[string]any{"name": "logo"}, 42.0}}}

	l, err := Compose(res)
	require.NoError(t, err)
	assert.Equal(t, []FAQ{{Question: "Is it fast?", Answer: "Is it fast?"}, {Question: "Q", Answer: "A"}}, l.FAQs)
	assert.Equal(t, []Competitor{{Name: "Anon Seller"}}, l.Competitors)
	assert.Equal(t, []string{"logo", "42"}, l.Tags)
	assert.Equal(t, 3, l.Packages.Basic.DeliveryDays)
}
