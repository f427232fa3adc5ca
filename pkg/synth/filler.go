package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var phrases = []string{
	"professional %s",
	"high quality %s",
	"custom %s",
	"%s done right",
	"reliable %s",
}

// filler is the generic verify.Filler. It knows nothing about a task
// beyond its topic.
type filler struct {
	topic string
	rnd   *rand.Rand
	title cases.Caser
}

func newFiller(topic string, seed uint64, taskID string) *filler {
	// Casers are stateful, so each filler gets its own.
	return &filler{
		topic: cases.Lower(language.English).String(strings.TrimSpace(topic)),
		rnd:   rand.New(rand.NewPCG(seed, streamOf("filler/"+taskID))),
		title: cases.Title(language.English),
	}
}

func (f *filler) Text(field string) string {
	phrase := fmt.Sprintf(phrases[f.rnd.IntN(len(phrases))], f.topic)
	switch leaf(field) {
	case "name", "question":
		return f.title.String(phrase)
	case "description", "answer":
		return fmt.Sprintf("%s, delivered on time and tailored to your needs.", f.title.String(phrase))
	default:
		return phrase
	}
}

func (f *filler) Item(field string, index int) any {
	return fmt.Sprintf("%s %s %d", f.topic, singular(leaf(field)), index+1)
}

// Number picks a whole number inside [min, max] when there is one.
// Open-ended ranges are capped to a hundred units above min.
func (f *filler) Number(_ string, min, max float64) float64 {
	hi := math.Min(max, min+100)
	n := math.Round(min + f.rnd.Float64()*(hi-min))
	if n < min || n > max {
		return min
	}
	return n
}

func leaf(field string) string {
	if i := strings.LastIndex(field, "."); i >= 0 {
		return field[i+1:]
	}
	return field
}

func singular(s string) string {
	if strings.HasSuffix(s, "ies") {
		return s[:len(s)-3] + "y"
	}
	return strings.TrimSuffix(s, "s")
}
