package verify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFiller struct{}

func (stubFiller) Text(field string) string                { return "generated " + field }
func (stubFiller) Item(field string, index int) any        { return fmt.Sprintf("%s %d", field, index+1) }
func (stubFiller) Number(_ string, min, _ float64) float64 { return min }

func titleSet() ConstraintSet {
	return ConstraintSet{
		Required("title"),
		NonEmpty("title"),
		Prefix("title", "I will"),
	}
}

func faqSet() ConstraintSet {
	return ConstraintSet{
		Required("faqs"),
		Items("faqs", 2, 3),
		Text("faqs.*.question"),
		Text("faqs.*.answer"),
	}
}

func pricingSet() ConstraintSet {
	return ConstraintSet{
		Required("basic"),
		Range("basic.price", 5, 10000),
		Range("standard.price", 5, 10000),
		Range("premium.price", 5, 10000),
		Ascending("basic.price", "standard.price", "premium.price"),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		set     ConstraintSet
		wantErr []string
	}{
		{
			name: "valid title",
			doc:  Document{"title": "I will design a logo"},
			set:  titleSet(),
		},
		{
			name:    "missing title",
			doc:     Document{},
			set:     titleSet(),
			wantErr: []string{"title"},
		},
		{
			name:    "missing prefix",
			doc:     Document{"title": "Design a logo"},
			set:     titleSet(),
			wantErr: []string{"title"},
		},
		{
			name: "prefix ignores case",
			doc:  Document{"title": "i WILL design a logo"},
			set:  titleSet(),
		},
		{
			name:    "prefix needs word boundary",
			doc:     Document{"title": "I willow design"},
			set:     titleSet(),
			wantErr: []string{"title"},
		},
		{
			name:    "absent array counts as zero",
			doc:     Document{},
			set:     ConstraintSet{Count("tags", 5)},
			wantErr: []string{"tags"},
		},
		{
			name: "array at bounds",
			doc:  Document{"faqs": []string{"a", "b", "c"}},
			set:  ConstraintSet{Items("faqs", 2, 3)},
		},
		{
			name:    "array above bounds",
			doc:     Document{"faqs": []any{"a", "b", "c", "d"}},
			set:     ConstraintSet{Items("faqs", 2, 3)},
			wantErr: []string{"faqs"},
		},
		{
			name: "range inclusive",
			doc:  Document{"price": 5},
			set:  ConstraintSet{Range("price", 5, 10)},
		},
		{
			name: "range exclusive min",
			doc:  Document{"price": 5.0},
			set: ConstraintSet{{
				Kind: KindRange, Field: "price", Min: 5, Max: 10, ExclusiveMin: true,
			}},
			wantErr: []string{"price"},
		},
		{
			name:    "numeric string is not a number",
			doc:     Document{"price": "5"},
			set:     ConstraintSet{Range("price", 0, 10)},
			wantErr: []string{"price"},
		},
		{
			name:    "enum is exact",
			doc:     Document{"category": "graphics & design"},
			set:     ConstraintSet{Enum("category", "Graphics & Design", "Writing")},
			wantErr: []string{"category"},
		},
		{
			name: "ascending prices",
			doc: Document{
				"basic":    map[string]any{"price": 10},
				"standard": map[string]any{"price": 20},
				"premium":  map[string]any{"price": 30},
			},
			set: pricingSet(),
		},
		{
			name: "equal prices are not ascending",
			doc: Document{
				"basic":    map[string]any{"price": 10},
				"standard": map[string]any{"price": 10},
				"premium":  map[string]any{"price": 30},
			},
			set:     pricingSet(),
			wantErr: []string{"basic.price", "standard.price", "premium.price"},
		},
		{
			name:    "empty string",
			doc:     Document{"description": "   "},
			set:     ConstraintSet{NonEmpty("description")},
			wantErr: []string{"description"},
		},
		{
			name: "non-empty accepts any shape",
			doc:  Document{"description": map[string]any{"intro": "hi"}},
			set:  ConstraintSet{NonEmpty("description")},
		},
		{
			name:    "text rejects an object",
			doc:     Document{"description": map[string]any{"intro": "hi"}},
			set:     ConstraintSet{Text("description")},
			wantErr: []string{"description"},
		},
		{
			name:    "text rejects an array",
			doc:     Document{"subcategory": []any{"Logo Design"}},
			set:     ConstraintSet{Text("subcategory")},
			wantErr: []string{"subcategory"},
		},
		{
			name:    "text rejects a number",
			doc:     Document{"subcategory": 7},
			set:     ConstraintSet{Text("subcategory")},
			wantErr: []string{"subcategory"},
		},
		{
			name: "each faq answered",
			doc: Document{"faqs": []any{
				map[string]any{"question": "a?", "answer": "yes"},
				map[string]any{"question": "b?", "answer": "no"},
			}},
			set: faqSet(),
		},
		{
			name: "faq answers checked per entry",
			doc: Document{"faqs": []any{
				map[string]any{"question": "a?"},
				map[string]any{"question": "b?", "answer": " "},
				map[string]any{"question": "c?", "answer": "sure"},
			}},
			set:     faqSet(),
			wantErr: []string{"faqs.0.answer", "faqs.1.answer"},
		},
		{
			name:    "plain string faq has no question",
			doc:     Document{"faqs": []any{"a?", map[string]any{"question": "b?", "answer": "no"}}},
			set:     faqSet(),
			wantErr: []string{"faqs.0.question", "faqs.0.answer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.doc, tt.set)
			if len(tt.wantErr) == 0 {
				assert.True(t, res.Valid(), res.Error())
				return
			}
			require.False(t, res.Valid())
			assert.ElementsMatch(t, tt.wantErr, res.Fields())
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	doc := Document{"title": "design", "tags": []string{"a"}}
	set := append(titleSet(), Count("tags", 5))
	first := Validate(doc, set)
	second := Validate(doc, set)
	assert.Equal(t, first, second)
	assert.Equal(t, Document{"title": "design", "tags": []string{"a"}}, doc)
}

func TestValidateUnknownKind(t *testing.T) {
	res := Validate(Document{"x": 1}, ConstraintSet{{Kind: "weird", Field: "x"}})
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0].Message, "unknown constraint kind")
}

func TestCustomMessage(t *testing.T) {
	c := NonEmpty("title")
	c.Message = "title must be set"
	res := Validate(Document{}, ConstraintSet{c})
	assert.Equal(t, []string{"title must be set"}, res.Messages())
}

func TestCanonicalPrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"design a logo", "I will design a logo"},
		{"I will design a logo", "I will design a logo"},
		{"i will design a logo", "I will design a logo"},
		{"I will I will design a logo", "I will design a logo"},
		{"  I WILL   design a logo ", "I will design a logo"},
		{"I willow things", "I will I willow things"},
		{"I will", "I will"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := CanonicalPrefix(tt.in, "I will")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CanonicalPrefix(got, "I will"), "not idempotent")
		})
	}
}

func TestNormalize(t *testing.T) {
	set := ConstraintSet{
		Prefix("title", "I will"),
		Enum("category", "Graphics & Design", "Writing"),
		Count("tags", 2),
	}
	doc := Document{
		"title":    "i will draw",
		"category": " graphics & design",
		"tags":     []string{"a", "b"},
	}

	out := Normalize(doc, set)

	assert.Equal(t, "I will draw", out["title"])
	assert.Equal(t, "Graphics & Design", out["category"])
	assert.Equal(t, []any{"a", "b"}, out["tags"])
	assert.Equal(t, "i will draw", doc["title"], "input must not change")
	assert.True(t, Validate(out, set).Valid())
}

func TestNormalizeLeavesMissingAlone(t *testing.T) {
	out := Normalize(Document{}, titleSet())
	_, ok := out["title"]
	assert.False(t, ok)
}

func TestCorrect(t *testing.T) {
	set := ConstraintSet{
		Required("title"),
		NonEmpty("title"),
		Prefix("title", "I will"),
		Enum("category", "Graphics & Design", "Writing"),
		Count("tags", 5),
		Items("faqs", 2, 3),
		Range("rating", 1, 5),
		Range("basic.price", 5, 10000),
		Range("standard.price", 5, 10000),
		Range("premium.price", 5, 10000),
		Ascending("basic.price", "standard.price", "premium.price"),
	}
	require.NoError(t, set.Check())

	tests := []struct {
		name string
		doc  Document
	}{
		{name: "empty", doc: Document{}},
		{name: "nil", doc: nil},
		{
			name: "wrong everything",
			doc: Document{
				"title":    "",
				"category": "Cooking",
				"tags":     []any{"a", "b", "c", "d", "e", "f", "g"},
				"faqs":     "not a list",
				"rating":   99,
				"basic":    map[string]any{"price": 500},
				"standard": map[string]any{"price": 50},
				"premium":  map[string]any{"price": 20000},
			},
		},
		{
			name: "prices at the top",
			doc: Document{
				"basic":    map[string]any{"price": 10000},
				"standard": map[string]any{"price": 10000},
				"premium":  map[string]any{"price": 10000},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Correct(tt.doc, set, stubFiller{})
			res := Validate(out, set)
			require.True(t, res.Valid(), res.Error())
			assert.Equal(t, out, Correct(out, set, stubFiller{}), "not idempotent")
		})
	}
}

func TestCorrectKeepsValidValues(t *testing.T) {
	set := pricingSet()
	doc := Document{
		"basic":    map[string]any{"price": 25.0},
		"standard": map[string]any{"price": 50.0},
		"premium":  map[string]any{"price": 100.0},
	}
	out := Correct(doc, set, stubFiller{})
	assert.Equal(t, doc, out)
}

func TestCorrectPushesPricesApart(t *testing.T) {
	set := pricingSet()
	doc := Document{
		"basic":    map[string]any{"price": 40.0},
		"standard": map[string]any{"price": 40.0},
		"premium":  map[string]any{"price": 30.0},
	}
	out := Correct(doc, set, stubFiller{})
	require.True(t, Validate(out, set).Valid())
	v, _ := Get(out, "basic.price")
	assert.Equal(t, 40.0, v)
	v, _ = Get(out, "standard.price")
	assert.Equal(t, 41.0, v)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		set     ConstraintSet
		wantErr bool
	}{
		{name: "pricing", set: pricingSet()},
		{name: "inverted items", set: ConstraintSet{Items("tags", 5, 3)}, wantErr: true},
		{name: "optional array", set: ConstraintSet{Items("tags", 0, 2)}},
		{name: "inverted range", set: ConstraintSet{Range("p", 10, 5)}, wantErr: true},
		{name: "empty enum", set: ConstraintSet{Enum("c")}, wantErr: true},
		{name: "empty prefix", set: ConstraintSet{Prefix("t", " ")}, wantErr: true},
		{name: "missing field", set: ConstraintSet{Required("")}, wantErr: true},
		{name: "unknown kind", set: ConstraintSet{{Kind: "nope", Field: "x"}}, wantErr: true},
		{name: "one ascending field", set: ConstraintSet{Ascending("a")}, wantErr: true},
		{
			name:    "conflicting shapes",
			set:     ConstraintSet{Count("x", 2), Range("x", 0, 1)},
			wantErr: true,
		},
		{name: "faq entries", set: faqSet()},
		{
			name:    "enum value without the prefix",
			set:     ConstraintSet{Prefix("title", "I will"), Enum("title", "I will draw", "Design a logo")},
			wantErr: true,
		},
		{
			name:    "enum value with the prefix in another case",
			set:     ConstraintSet{Prefix("title", "I will"), Enum("title", "i will draw")},
			wantErr: true,
		},
		{
			name: "enum values carrying the prefix",
			set:  ConstraintSet{Prefix("title", "I will"), Enum("title", "I will draw", "I will write")},
		},
		{
			name:    "conflicting prefixes",
			set:     ConstraintSet{Prefix("title", "I will"), Prefix("title", "We can")},
			wantErr: true,
		},
		{
			name: "same prefix twice",
			set:  ConstraintSet{Prefix("title", "I will"), Prefix("title", "i will ")},
		},
		{
			name:    "disjoint ranges",
			set:     ConstraintSet{Range("price", 0, 10), Range("price", 20, 30)},
			wantErr: true,
		},
		{
			name: "ranges touching at an open end",
			set: ConstraintSet{
				Range("price", 0, 10),
				{Kind: KindRange, Field: "price", Min: 10, Max: 20, ExclusiveMin: true},
			},
			wantErr: true,
		},
		{
			name: "overlapping ranges",
			set:  ConstraintSet{Range("price", 0, 10), Range("price", 5, 20)},
		},
		{
			name:    "enums sharing nothing",
			set:     ConstraintSet{Enum("c", "a", "b"), Enum("c", "x")},
			wantErr: true,
		},
		{name: "blank enum value", set: ConstraintSet{Enum("c", "a", " ")}, wantErr: true},
		{name: "leading wildcard", set: ConstraintSet{Text("*.answer")}, wantErr: true},
		{name: "partial wildcard", set: ConstraintSet{Text("faqs.a*.answer")}, wantErr: true},
		{
			name:    "wildcard in ascending",
			set:     ConstraintSet{Ascending("tiers.*.price", "premium.price")},
			wantErr: true,
		},
		{
			name:    "text and range on one field",
			set:     ConstraintSet{Text("price"), Range("price", 0, 1)},
			wantErr: true,
		},
		{
			name: "no room to ascend",
			set: ConstraintSet{
				Range("a", 0, 1), Range("b", 0, 1), Range("c", 0, 1),
				Ascending("a", "b", "c"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Check()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConstraint))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCorrectOverlappingRanges(t *testing.T) {
	set := ConstraintSet{Range("price", 0, 10), Range("price", 5, 20)}
	require.NoError(t, set.Check())

	for in, want := range map[float64]float64{30: 10, 1: 5, -4: 5} {
		out := Correct(Document{"price": in}, set, stubFiller{})
		require.True(t, Validate(out, set).Valid(), "price %g", in)
		assert.Equal(t, want, out["price"], "price %g", in)
	}
}

func TestCorrectText(t *testing.T) {
	set := ConstraintSet{Required("description"), Text("description"), Text("count"), Text("flag")}
	out := Correct(Document{
		"description": map[string]any{"intro": "hi"},
		"count":       7,
		"flag":        true,
	}, set, stubFiller{})

	require.True(t, Validate(out, set).Valid())
	assert.Equal(t, "generated description", out["description"])
	assert.Equal(t, "7", out["count"])
	assert.Equal(t, "true", out["flag"])
}

func TestCorrectFAQEntries(t *testing.T) {
	set := faqSet()
	tests := []struct {
		name string
		doc  Document
	}{
		{name: "missing", doc: Document{}},
		{name: "plain strings", doc: Document{"faqs": []any{"a?", "b?"}}},
		{name: "answers missing", doc: Document{"faqs": []any{
			map[string]any{"question": "a?"},
			map[string]any{"question": "b?", "answer": ""},
		}}},
		{name: "too many and unanswered", doc: Document{"faqs": []map[string]any{
			{"question": "a?"}, {"question": "b?"}, {"question": "c?"}, {"question": "d?"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Correct(tt.doc, set, stubFiller{})
			require.True(t, Validate(out, set).Valid(), Validate(out, set).Error())
			assert.Equal(t, out, Correct(out, set, stubFiller{}), "not idempotent")
		})
	}

	out := Correct(Document{"faqs": []any{
		map[string]any{"question": "a?"},
		map[string]any{"question": "b?", "answer": "no"},
	}}, set, stubFiller{})
	assert.Equal(t, []any{
		map[string]any{"question": "a?", "answer": "generated faqs.0.answer"},
		map[string]any{"question": "b?", "answer": "no"},
	}, out["faqs"])
}

func TestItemsLengths(t *testing.T) {
	bounds := []struct {
		field    string
		min, max int
	}{
		{"tags", 5, 5},
		{"faqs", 2, 3},
		{"competitors", 2, 4},
	}
	for _, b := range bounds {
		set := ConstraintSet{Required(b.field), Items(b.field, b.min, b.max)}
		for _, n := range []int{0, 1, b.min - 1, b.min, b.max, b.max + 1, 2 * b.max} {
			t.Run(fmt.Sprintf("%s/%d", b.field, n), func(t *testing.T) {
				items := make([]any, n)
				for i := range items {
					items[i] = fmt.Sprintf("item %d", i+1)
				}
				doc := Document{b.field: items}

				inBounds := n >= b.min && n <= b.max
				res := Validate(doc, set)
				assert.Equal(t, inBounds, res.Valid(), res.Error())
				if !inBounds {
					assert.Equal(t, []string{b.field}, res.Fields())
				}

				out := Correct(doc, set, stubFiller{})
				require.True(t, Validate(out, set).Valid())
				got := out[b.field].([]any)
				assert.Len(t, got, min(max(n, b.min), b.max))
				for i := range min(n, b.max) {
					assert.Equal(t, items[i], got[i], "existing entries come first")
				}
			})
		}
	}
}

func TestPath(t *testing.T) {
	doc := Document{}
	Set(doc, "basic.price", 10)
	v, ok := Get(doc, "basic.price")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = Get(doc, "basic.missing")
	assert.False(t, ok)
	_, ok = Get(doc, "basic.price.deeper")
	assert.False(t, ok)

	cp := Clone(doc)
	Set(cp, "basic.price", 20)
	v, _ = Get(doc, "basic.price")
	assert.Equal(t, 10, v, "clone must be deep")
}

func TestPathIndexes(t *testing.T) {
	doc := Document{"faqs": []map[string]any{{"question": "a?"}, {"question": "b?"}}}

	v, ok := Get(doc, "faqs.1.question")
	require.True(t, ok)
	assert.Equal(t, "b?", v)
	_, ok = Get(doc, "faqs.2.question")
	assert.False(t, ok)
	_, ok = Get(doc, "faqs.-1.question")
	assert.False(t, ok)

	Set(doc, "faqs.0.answer", "yes")
	v, _ = Get(doc, "faqs.0.answer")
	assert.Equal(t, "yes", v)

	Delete(doc, "faqs.0.answer")
	_, ok = Get(doc, "faqs.0.answer")
	assert.False(t, ok)

	tags := Document{"tags": []any{"a", "b"}}
	Set(tags, "tags.1", "c")
	assert.Equal(t, []any{"a", "c"}, tags["tags"])
	Set(tags, "tags.0.name", "x")
	assert.Equal(t, []any{map[string]any{"name": "x"}, "c"}, tags["tags"])
}

func TestForFieldMatchesWildcards(t *testing.T) {
	set := faqSet()
	got := set.ForField("faqs.1.answer")
	require.Len(t, got, 1)
	assert.Equal(t, "faqs.*.answer", got[0].Field)
	assert.Empty(t, set.ForField("faqs.x.answer"))
	assert.Equal(t, shapeArray, set.shapeOf("faqs"))
	assert.Equal(t, shapeText, set.shapeOf("faqs.0.answer"))
}

func TestConstraintString(t *testing.T) {
	assert.Equal(t, "tags: exactly 5 items", Count("tags", 5).String())
	assert.Equal(t, "faqs: 2-3 items", Items("faqs", 2, 3).String())
	assert.Equal(t, `title: starts with "I will"`, Prefix("title", "I will").String())
	assert.Equal(t, "a < b: strictly increasing", Ascending("a", "b").String())
	assert.Equal(t, "faqs.*.answer: non-empty text", Text("faqs.*.answer").String())
}
