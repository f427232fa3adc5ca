package spec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownParam is returned for overrides naming a param the document
// does not declare.
var ErrUnknownParam = errors.New("unknown param")

// Built-in variables, available without a params entry.
var builtinVars = []string{"date", "year"}

// LoadGraph reads a YAML graph file and parses it with ParseGraph.
func LoadGraph(path string, params map[string]string) (TaskGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TaskGraph{}, fmt.Errorf("read graph %s: %w", path, err)
	}
	g, err := ParseGraph(data, params)
	if err != nil {
		return TaskGraph{}, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseGraph decodes a graph document. Keys the document format does not
// know are errors, reported with their line.
//
// {{name}} placeholders in string values are replaced by the override in
// params, else the declared default, else the built-ins {{date}} and
// {{year}}. Substitution happens on parsed string values, so a value
// containing YAML syntax cannot change the shape of the document. Prompt
// template actions such as {{ .keyword }} are left alone, as are
// placeholders nothing defines.
func ParseGraph(data []byte, params map[string]string) (TaskGraph, error) {
	var raw TaskGraph
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return TaskGraph{}, nil
		}
		return TaskGraph{}, fmt.Errorf("parse graph: %w", err)
	}

	vars, err := buildVarMap(raw.Params, params)
	if err != nil {
		return TaskGraph{}, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return TaskGraph{}, fmt.Errorf("parse graph: %w", err)
	}
	interpolate(&root, vars)

	var g TaskGraph
	if err := root.Decode(&g); err != nil {
		return TaskGraph{}, fmt.Errorf("parse interpolated graph: %w", err)
	}
	return g, nil
}

// buildVarMap layers the built-ins, the param defaults and the overrides.
// An override must name a declared param or a built-in.
func buildVarMap(defs []ParamDef, overrides map[string]string) (map[string]string, error) {
	now := time.Now()
	vars := map[string]string{
		"date": now.Format("2006-01-02"),
		"year": now.Format("2006"),
	}

	declared := make(map[string]bool, len(defs))
	for _, p := range defs {
		declared[p.Name] = true
		if p.Default != nil {
			vars[p.Name] = fmt.Sprint(p.Default)
		}
	}

	var unknown []string
	for k, v := range overrides {
		if !declared[k] && !slices.Contains(builtinVars, k) {
			unknown = append(unknown, k)
			continue
		}
		vars[k] = v
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownParam, strings.Join(unknown, ", "))
	}
	return vars, nil
}

// placeholder matches {{var_name}} with no spaces or dots, which keeps it
// clear of template actions.
var placeholder = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

func interpolate(n *yaml.Node, vars map[string]string) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		n.Value = placeholder.ReplaceAllStringFunc(n.Value, func(match string) string {
			if val, ok := vars[match[2:len(match)-2]]; ok {
				return val
			}
			return match
		})
		return
	}
	for _, child := range n.Content {
		interpolate(child, vars)
	}
}
