package gig

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cgast/gigsmith/pkg/synth"
	"github.com/cgast/gigsmith/pkg/verify"
)

// Fallbacks returns the synthesizer options that register the gig content
// providers.
func Fallbacks() []synth.Option {
	providers := map[string]synth.ContentFunc{
		TaskCategory:     categoryContent,
		TaskTitle:        titleContent,
		TaskTags:         tagsContent,
		TaskCompetitors:  competitorsContent,
		TaskPricing:      pricingContent,
		TaskDescription:  descriptionContent,
		TaskFAQs:         faqsContent,
		TaskRequirements: requirementsContent,
		TaskImages:       imagesContent,
	}
	opts := make([]synth.Option, 0, len(providers))
	for id, fn := range providers {
		opts = append(opts, synth.WithProvider(id, fn))
	}
	return opts
}

func keywordOf(req synth.Request) string {
	if s, ok := req.Inputs["keyword"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return strings.ToLower(req.Topic)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}

func categoryContent(req synth.Request) verify.Document {
	kw := keywordOf(req)
	c := classify(kw)
	return verify.Document{
		"category":    c.Name,
		"subcategory": subcategoryFor(c, kw),
	}
}

// subcategoryFor picks the subcategory sharing the most words with the
// keyword, or the first one.
func subcategoryFor(c category, keyword string) string {
	best, bestScore := c.Subcategories[0], 0
	for _, sub := range c.Subcategories {
		score := 0
		for _, w := range strings.Fields(strings.ToLower(sub)) {
			w = strings.TrimSuffix(w, "s")
			if len(w) > 2 && strings.Contains(keyword, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sub, score
		}
	}
	return best
}

var titleTemplates = []string{
	"I will create a professional %s for your business",
	"I will deliver high quality %s in 24 hours",
	"I will do expert %s tailored to your brand",
	"I will provide custom %s with unlimited revisions",
	"I will help you with outstanding %s",
}

func titleContent(req synth.Request) verify.Document {
	return verify.Document{
		"title": fmt.Sprintf(pick(req.Rand, titleTemplates), keywordOf(req)),
	}
}

var tagModifiers = []string{"%s", "custom %s", "professional %s", "%s service", "best %s", "%s expert", "affordable %s"}

// tagsContent offers more variants than needed; the synthesizer keeps
// valid generated tags first and takes unique variants after them.
func tagsContent(req synth.Request) verify.Document {
	kw := keywordOf(req)
	var tags []any
	add := func(s string) {
		tag := strings.ReplaceAll(slug.Make(s), "-", " ")
		if tag != "" && !slices.Contains(tags, any(tag)) {
			tags = append(tags, tag)
		}
	}
	add(kw)
	for _, w := range strings.Fields(kw) {
		if len(w) > 2 {
			add(w)
		}
	}
	mods := slices.Clone(tagModifiers[1:])
	req.Rand.Shuffle(len(mods), func(i, j int) { mods[i], mods[j] = mods[j], mods[i] })
	for _, m := range mods {
		add(fmt.Sprintf(m, kw))
	}
	add(strings.ToLower(classify(kw).Name))
	return verify.Document{"tags": tags}
}

var sellerPrefixes = []string{"Pixel", "Bright", "Swift", "Nova", "Prime", "Craft", "Bold", "Clear"}
var sellerSuffixes = []string{"Studio", "Works", "Lab", "Collective", "Pro", "Agency"}

func competitorsContent(req synth.Request) verify.Document {
	c := classify(keywordOf(req))
	n := MinCompetitors + req.Rand.IntN(MaxCompetitors-MinCompetitors+1)
	out := make([]any, 0, n)
	for range n {
		factor := decimal.NewFromFloat(0.7 + req.Rand.Float64()*0.9)
		price := c.BasePrice.Mul(factor).Round(0)
		rating := decimal.NewFromFloat(4.3 + req.Rand.Float64()*0.7).Round(1)
		out = append(out, map[string]any{
			"name":    pick(req.Rand, sellerPrefixes) + " " + pick(req.Rand, sellerSuffixes),
			"price":   price.InexactFloat64(),
			"rating":  rating.InexactFloat64(),
			"reviews": 20 + req.Rand.IntN(980),
		})
	}
	return verify.Document{"competitors": out}
}

var tierNames = map[string]string{"basic": "Starter", "standard": "Standard", "premium": "Premium"}

// Tier price multipliers of the anchor price and their revision counts.
var (
	tierFactors   = []decimal.Decimal{decimal.RequireFromString("0.6"), decimal.RequireFromString("1.1"), decimal.RequireFromString("2.2")}
	tierRevisions = []int{1, 3, 5}
	tierExtraDays = []int{0, 2, 5}
)

func pricingContent(req synth.Request) verify.Document {
	c, ok := lookupCategory(fmt.Sprint(req.Inputs["category"]))
	if !ok {
		c = classify(keywordOf(req))
	}
	prices := TierPrices(anchorPrice(req.Inputs["competitors"], c.BasePrice))
	kw := keywordOf(req)

	doc := verify.Document{}
	for i, tier := range Tiers {
		doc[tier] = map[string]any{
			"name":          tierNames[tier],
			"description":   tierDescription(tier, kw),
			"price":         prices[i].InexactFloat64(),
			"delivery_days": min(c.Delivery+tierExtraDays[i], MaxDelivery),
			"revisions":     tierRevisions[i],
		}
	}
	return doc
}

// anchorPrice is the median competitor price, or base when no competitor
// carries a usable price.
func anchorPrice(competitors any, base decimal.Decimal) decimal.Decimal {
	list, _ := verify.AsSlice(competitors)
	var prices []decimal.Decimal
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if p, ok := priceOf(m["price"]); ok && p.IsPositive() {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return base
	}
	slices.SortFunc(prices, func(a, b decimal.Decimal) int { return a.Cmp(b) })
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return prices[mid-1].Add(prices[mid]).Div(decimal.NewFromInt(2))
}

func priceOf(v any) (decimal.Decimal, bool) {
	if n, ok := verify.AsNumber(v); ok {
		return decimal.NewFromFloat(n), true
	}
	s, ok := v.(string)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$")))
	return d, err == nil
}

// TierPrices derives whole-dollar basic, standard and premium prices from
// an anchor. The result is strictly ascending and inside the allowed
// price range.
func TierPrices(anchor decimal.Decimal) []decimal.Decimal {
	lo, hi := decimal.NewFromInt(MinPrice), decimal.NewFromInt(MaxPrice)
	one := decimal.NewFromInt(1)

	out := make([]decimal.Decimal, len(tierFactors))
	for i, f := range tierFactors {
		p := decimal.Max(anchor.Mul(f).Round(0), lo)
		if i > 0 {
			p = decimal.Max(p, out[i-1].Add(one))
		}
		out[i] = p
	}
	// Walk back down from the ceiling when the anchor is huge.
	for i := len(out) - 1; i >= 0; i-- {
		ceiling := hi.Sub(decimal.NewFromInt(int64(len(out) - 1 - i)))
		out[i] = decimal.Min(out[i], ceiling)
	}
	return out
}

func tierDescription(tier, keyword string) string {
	switch tier {
	case "basic":
		return fmt.Sprintf("One %s concept with the essentials to get you started.", keyword)
	case "standard":
		return fmt.Sprintf("Two %s options, source files and priority support.", keyword)
	default:
		return fmt.Sprintf("Complete %s package with every source file, extras and fastest turnaround.", keyword)
	}
}

const descriptionTemplate = `## %s

Looking for %s that stands out? I deliver polished, ready-to-use results built around your goals.

### What you get
- Original %s made for your project
- Clear communication and regular progress updates
- Revisions until you are happy
- Files ready for immediate use

### Why work with me
I focus on %s every day and care about the details that make buyers come back.

Send me a message before ordering so we can discuss your project.`

func descriptionContent(req synth.Request) verify.Document {
	kw := keywordOf(req)
	heading := titleCase(kw)
	if t, ok := req.Inputs["title"].(string); ok && strings.TrimSpace(t) != "" {
		heading = strings.TrimSpace(t)
	}
	return verify.Document{
		"description": fmt.Sprintf(descriptionTemplate, heading, kw, kw, kw),
	}
}

var faqTemplates = [][2]string{
	{"What do you need to get started with my %s?", "Share your goals, any references you like and your deadline. I will take it from there."},
	{"How many revisions are included for the %s?", "Every package includes revisions. Higher tiers include more rounds."},
	{"Can you deliver the %s faster?", "Yes. Add the fast delivery extra or message me before ordering."},
	{"Will I own the final %s?", "Yes. Full rights transfer to you once the order is complete."},
}

func faqsContent(req synth.Request) verify.Document {
	kw := keywordOf(req)
	order := req.Rand.Perm(len(faqTemplates))
	out := make([]any, 0, MaxFAQs)
	for _, i := range order[:MaxFAQs] {
		out = append(out, map[string]any{
			"question": fmt.Sprintf(faqTemplates[i][0], kw),
			"answer":   faqTemplates[i][1],
		})
	}
	return verify.Document{"faqs": out}
}

var categoryRequirements = map[string][]string{
	"Graphics & Design":     {"Your brand name and slogan", "Preferred colors and styles", "Examples of designs you like"},
	"Programming & Tech":    {"Access to the repository or hosting", "A description of the expected behavior", "Any existing documentation"},
	"Digital Marketing":     {"Your website or social media links", "Target audience and markets", "Current marketing goals"},
	"Writing & Translation": {"Topic and target keywords", "Preferred tone of voice", "Word count and deadline"},
	"Video & Animation":     {"Raw footage or assets", "Reference videos you like", "Music and branding preferences"},
	"Music & Audio":         {"Script or lyrics", "Reference tracks", "Preferred file format"},
	"Business":              {"A summary of your business", "Files or data to work with", "Expected deliverable format"},
}

var commonRequirements = []string{
	"Your deadline and any key dates",
	"Anything you definitely do not want",
}

func requirementsContent(req synth.Request) verify.Document {
	c, ok := lookupCategory(fmt.Sprint(req.Inputs["category"]))
	if !ok {
		c = classify(keywordOf(req))
	}
	var out []any
	for _, r := range categoryRequirements[c.Name] {
		out = append(out, r)
	}
	for _, r := range commonRequirements {
		out = append(out, r)
	}
	return verify.Document{"requirements": out}
}

func imagesContent(req synth.Request) verify.Document {
	base := slug.Make(keywordOf(req))
	if base == "" {
		base = "gig"
	}
	out := make([]any, 0, MaxImages)
	for _, kind := range []string{"cover", "sample", "process"}[:MaxImages] {
		out = append(out, fmt.Sprintf("%s-%s.png", base, kind))
	}
	return verify.Document{"images": out}
}
