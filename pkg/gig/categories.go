package gig

import (
	"strings"

	"github.com/shopspring/decimal"
)

// category is one marketplace category with the subcategories the fallback
// picks from and the keywords that route a gig to it.
type category struct {
	Name          string
	Subcategories []string
	Keywords      []string
	// BasePrice anchors fallback pricing when no competitor data exists.
	BasePrice decimal.Decimal
	// Delivery is the fallback delivery time of the basic package in days.
	Delivery int
}

var categories = []category{
	{
		Name:          "Graphics & Design",
		Subcategories: []string{"Logo Design", "Brand Style Guides", "Illustration", "Social Media Design", "Web & App Design"},
		Keywords:      []string{"logo", "design", "brand", "illustration", "banner", "flyer", "poster", "icon", "graphic", "thumbnail", "ui", "ux"},
		BasePrice:     decimal.NewFromInt(50),
		Delivery:      3,
	},
	{
		Name:          "Programming & Tech",
		Subcategories: []string{"Website Development", "Mobile Apps", "Bug Fixes", "Chatbots", "Scripts & Automation"},
		Keywords:      []string{"website", "app", "code", "bug", "python", "wordpress", "shopify", "api", "bot", "script", "software", "react", "golang"},
		BasePrice:     decimal.NewFromInt(120),
		Delivery:      5,
	},
	{
		Name:          "Digital Marketing",
		Subcategories: []string{"Search Engine Optimization", "Social Media Marketing", "Email Marketing", "Content Marketing"},
		Keywords:      []string{"seo", "marketing", "ads", "social media", "instagram", "email", "campaign", "growth", "traffic"},
		BasePrice:     decimal.NewFromInt(80),
		Delivery:      5,
	},
	{
		Name:          "Writing & Translation",
		Subcategories: []string{"Articles & Blog Posts", "Copywriting", "Translation", "Proofreading & Editing", "Resume Writing"},
		Keywords:      []string{"write", "writing", "article", "blog", "copy", "translate", "translation", "proofread", "resume", "ebook", "content"},
		BasePrice:     decimal.NewFromInt(40),
		Delivery:      3,
	},
	{
		Name:          "Video & Animation",
		Subcategories: []string{"Video Editing", "Animated Explainers", "Intros & Outros", "Short Video Ads"},
		Keywords:      []string{"video", "animation", "edit", "editing", "intro", "youtube", "explainer", "motion", "reel"},
		BasePrice:     decimal.NewFromInt(75),
		Delivery:      4,
	},
	{
		Name:          "Music & Audio",
		Subcategories: []string{"Voice Over", "Mixing & Mastering", "Podcast Editing", "Jingles"},
		Keywords:      []string{"voice", "music", "audio", "podcast", "song", "mixing", "jingle", "beat"},
		BasePrice:     decimal.NewFromInt(60),
		Delivery:      3,
	},
	{
		Name:          "Business",
		Subcategories: []string{"Virtual Assistant", "Market Research", "Business Plans", "Presentations"},
		Keywords:      []string{"business", "assistant", "research", "plan", "presentation", "excel", "data entry", "consulting"},
		BasePrice:     decimal.NewFromInt(45),
		Delivery:      3,
	},
}

// CategoryNames returns every category name, the allowed values of the
// category field.
func CategoryNames() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.Name
	}
	return out
}

// classify picks the category whose keywords best match the gig keyword.
// Ties go to the earlier category; no match at all falls back to the
// business category.
func classify(keyword string) category {
	kw := strings.ToLower(keyword)
	best, bestScore := categories[len(categories)-1], 0
	for _, c := range categories {
		score := 0
		for _, k := range c.Keywords {
			if containsWord(kw, k) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func lookupCategory(name string) (category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return category{}, false
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
