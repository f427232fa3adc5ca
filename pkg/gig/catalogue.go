// Package gig generates complete marketplace gig listings from a keyword.
package gig

import (
	"strings"
	"time"

	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

// Task ids.
const (
	TaskCategory     = "category"
	TaskTitle        = "title"
	TaskTags         = "tags"
	TaskCompetitors  = "competitors"
	TaskPricing      = "pricing"
	TaskDescription  = "description"
	TaskFAQs         = "faqs"
	TaskRequirements = "requirements"
	TaskImages       = "images"
)

// Listing rules.
const (
	TitlePrefix = "I will"
	TagCount    = 5

	MinPrice     = 5
	MaxPrice     = 10000
	MinDelivery  = 1
	MaxDelivery  = 30
	MaxRevisions = 10

	MinFAQs         = 2
	MaxFAQs         = 3
	MinRequirements = 3
	MaxRequirements = 5
	MaxImages       = 3
	MinCompetitors  = 2
	MaxCompetitors  = 4
)

// Tiers are the package tiers in ascending price order.
var Tiers = []string{"basic", "standard", "premium"}

var keywordParam = task.Param{Name: "keyword", Required: true}

func from(taskID, field string) task.Param {
	return task.Param{Name: field, From: taskID, Field: field, Required: true}
}

// Catalogue returns the gig task graph.
func Catalogue() []task.Spec {
	return []task.Spec{
		categorySpec(),
		titleSpec(),
		tagsSpec(),
		competitorsSpec(),
		pricingSpec(),
		descriptionSpec(),
		faqsSpec(),
		requirementsSpec(),
		imagesSpec(),
	}
}

func categorySpec() task.Spec {
	return task.Spec{
		ID:          TaskCategory,
		Description: "Marketplace category and subcategory",
		Inputs:      []task.Param{keywordParam},
		Fields: []task.Field{
			{Name: "category", Type: "string", Description: "one of the allowed categories"},
			{Name: "subcategory", Type: "string", Description: "the most specific fitting subcategory"},
		},
		Constraints: verify.ConstraintSet{
			verify.Required("category"),
			verify.Enum("category", CategoryNames()...),
			verify.Text("subcategory"),
		},
		Prompt: `Pick the marketplace category and subcategory for a freelance gig about "{{ .keyword }}".
Allowed categories: ` + strings.Join(CategoryNames(), ", "),
		Timeout: 20 * time.Second,
	}
}

func titleSpec() task.Spec {
	return task.Spec{
		ID:          TaskTitle,
		Description: "Gig title",
		Inputs:      []task.Param{keywordParam},
		Fields: []task.Field{
			{Name: "title", Type: "string", Description: `short gig title starting with "I will"`},
		},
		Constraints: verify.ConstraintSet{
			verify.Required("title"),
			verify.Text("title"),
			verify.Prefix("title", TitlePrefix),
		},
		Prompt: `Write a catchy gig title for "{{ .keyword }}". It must start with "I will" and stay under 80 characters.`,
	}
}

func tagsSpec() task.Spec {
	return task.Spec{
		ID:          TaskTags,
		Description: "Search tags",
		Inputs:      []task.Param{keywordParam},
		Fields: []task.Field{
			{Name: "tags", Type: "array of strings", Description: "exactly five short lowercase search tags"},
		},
		Constraints: verify.ConstraintSet{
			verify.Required("tags"),
			verify.Count("tags", TagCount),
			verify.Text("tags.*"),
		},
		Prompt: `List five search tags buyers would use to find a "{{ .keyword }}" gig.`,
	}
}

func competitorsSpec() task.Spec {
	return task.Spec{
		ID:          TaskCompetitors,
		Description: "Competitor profiles used to anchor pricing",
		Inputs:      []task.Param{keywordParam},
		Fields: []task.Field{
			{Name: "competitors", Type: "array of objects", Description: "seller profiles with name, price (USD), rating (0-5) and reviews"},
		},
		Constraints: verify.ConstraintSet{
			verify.Items("competitors", MinCompetitors, MaxCompetitors),
		},
		Prompt: `Describe three typical competing sellers offering "{{ .keyword }}" with their starting price, rating and review count.`,
	}
}

func pricingSpec() task.Spec {
	var set verify.ConstraintSet
	var fields []task.Field
	for _, tier := range Tiers {
		set = append(set,
			verify.Required(tier),
			verify.Text(tier+".name"),
			verify.Text(tier+".description"),
			verify.Range(tier+".price", MinPrice, MaxPrice),
			verify.Range(tier+".delivery_days", MinDelivery, MaxDelivery),
			verify.Range(tier+".revisions", 0, MaxRevisions),
		)
		fields = append(fields, task.Field{
			Name:        tier,
			Type:        "object",
			Description: "name, description, price (USD), delivery_days, revisions",
		})
	}
	set = append(set, verify.Ascending("basic.price", "standard.price", "premium.price"))

	return task.Spec{
		ID:          TaskPricing,
		Description: "Three package tiers",
		DependsOn:   []string{TaskCategory, TaskCompetitors},
		Inputs: []task.Param{
			keywordParam,
			from(TaskCategory, "category"),
			from(TaskCompetitors, "competitors"),
		},
		Fields:      fields,
		Constraints: set,
		Prompt: `Design basic, standard and premium packages for a "{{ .keyword }}" gig in {{ .category }}.
Competitors: {{ .competitors | toJson }}
Prices must rise from basic to premium.`,
	}
}

func descriptionSpec() task.Spec {
	return task.Spec{
		ID:          TaskDescription,
		Description: "Markdown gig description",
		DependsOn:   []string{TaskTitle},
		Inputs:      []task.Param{keywordParam, from(TaskTitle, "title")},
		Fields: []task.Field{
			{Name: "description", Type: "string", Description: "markdown description with a short intro and a bullet list of what is included"},
		},
		Constraints: verify.ConstraintSet{
			verify.Required("description"),
			verify.Text("description"),
		},
		Prompt: `Write the gig description in markdown for "{{ .title }}".`,
	}
}

func faqsSpec() task.Spec {
	return task.Spec{
		ID:          TaskFAQs,
		Description: "Frequently asked questions",
		DependsOn:   []string{TaskDescription},
		Inputs:      []task.Param{keywordParam, from(TaskDescription, "description")},
		Fields: []task.Field{
			{Name: "faqs", Type: "array of objects", Description: "two or three entries with question and answer"},
		},
		Constraints: verify.ConstraintSet{
			verify.Required("faqs"),
			verify.Items("faqs", MinFAQs, MaxFAQs),
			verify.Text("faqs.*.question"),
			verify.Text("faqs.*.answer"),
		},
		Prompt: `Write buyer FAQs for this gig:
{{ .description | trunc 1500 }}`,
	}
}

func requirementsSpec() task.Spec {
	return task.Spec{
		ID:          TaskRequirements,
		Description: "What the buyer must provide",
		DependsOn:   []string{TaskCategory, TaskDescription},
		Inputs: []task.Param{
			keywordParam,
			from(TaskCategory, "category"),
			from(TaskDescription, "description"),
		},
		Fields: []task.Field{
			{Name: "requirements", Type: "array of strings", Description: "three to five things the buyer must provide"},
		},
		Constraints: verify.ConstraintSet{
			verify.Required("requirements"),
			verify.Items("requirements", MinRequirements, MaxRequirements),
			verify.Text("requirements.*"),
		},
		Prompt: `List what a buyer must provide before work starts on a {{ .category }} gig:
{{ .description | trunc 1000 }}`,
	}
}

func imagesSpec() task.Spec {
	return task.Spec{
		ID:          TaskImages,
		Description: "Gallery image references",
		DependsOn:   []string{TaskTitle},
		Inputs:      []task.Param{keywordParam, from(TaskTitle, "title")},
		Fields: []task.Field{
			{Name: "images", Type: "array of strings", Description: "up to three gallery image file names or prompts"},
		},
		Constraints: verify.ConstraintSet{
			verify.Items("images", 0, MaxImages),
		},
		Prompt: `Suggest up to three gallery images for "{{ .title }}".`,
	}
}
