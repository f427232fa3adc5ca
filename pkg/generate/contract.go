package generate

import (
	"fmt"
	"strings"

	"github.com/cgast/gigsmith/pkg/task"
)

// Contract renders the output contract of a request as instructions for a
// language model: the JSON fields to return and the rules they must meet.
func Contract(req task.Request) string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else.\n")
	if len(req.Fields) > 0 {
		b.WriteString("Fields:\n")
		for _, f := range req.Fields {
			fmt.Fprintf(&b, "- %s (%s)", f.Name, f.Type)
			if f.Description != "" {
				fmt.Fprintf(&b, ": %s", f.Description)
			}
			b.WriteByte('\n')
		}
	}
	if len(req.Constraints) > 0 {
		b.WriteString("Rules:\n")
		for _, c := range req.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return b.String()
}
