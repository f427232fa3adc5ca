package generate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

var ErrNoJSON = errors.New("no JSON object in response")

// Decode extracts the candidate document from a raw model or service
// response. Text around the first JSON object (code fences, chatter) is
// ignored. When fields are given only those keys are taken; missing keys
// stay missing so validation can report them.
func Decode(raw string, fields []task.Field) (verify.Document, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return nil, ErrNoJSON
	}
	parsed := gjson.Parse(obj)

	doc := verify.Document{}
	if len(fields) == 0 {
		m, ok := parsed.Value().(map[string]any)
		if !ok {
			return nil, ErrNoJSON
		}
		for k, v := range m {
			doc[k] = v
		}
		return doc, nil
	}
	for _, f := range fields {
		res := parsed.Get(gjson.Escape(f.Name))
		if !res.Exists() {
			continue
		}
		doc[f.Name] = res.Value()
	}
	return doc, nil
}

// DecodeAt decodes the object found at a gjson path of body. An empty path
// or a path that does not exist decodes the body itself.
func DecodeAt(body, path string, fields []task.Field) (verify.Document, error) {
	if path != "" && gjson.Valid(body) {
		res := gjson.Get(body, path)
		switch {
		case res.IsObject():
			return Decode(res.Raw, fields)
		case res.Type == gjson.String:
			return Decode(res.String(), fields)
		case res.Exists():
			return nil, fmt.Errorf("%s: %w", path, ErrNoJSON)
		}
	}
	return Decode(body, fields)
}

func extractObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if gjson.Valid(s) && gjson.Parse(s).IsObject() {
		return s, true
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return "", false
	}
	return s, true
}
