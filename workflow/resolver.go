package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// resolveBindings builds a vertex's input map. Aux entries (merged producer
// outputs, or the caller inputs for vertices with no producers) come first;
// declared bindings are resolved on top and shadow aux names.
func resolveBindings(rc *RunContext, vertexID string, bindings []Binding, aux, callerInputs map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(aux)+len(bindings))
	for name, value := range aux {
		resolved[name] = value
	}

	for _, b := range bindings {
		local := b.As
		if local == "" {
			local = b.Var
		}

		var scope map[string]any
		switch b.Scope {
		case ScopeInput:
			scope = callerInputs
		case ScopeSource:
			scope = rc.source
		case ScopeEnv:
			scope = rc.env
		default:
			out, ok := rc.Output(b.Scope)
			if !ok {
				return nil, &MissingDependencyError{Vertex: vertexID, Scope: b.Scope, Field: b.Var}
			}
			scope = out
		}

		if b.Var == "" {
			resolved[local] = scope
			continue
		}
		value, ok := scope[b.Var]
		if !ok {
			return nil, &MissingDependencyError{Vertex: vertexID, Scope: b.Scope, Field: b.Var}
		}
		resolved[local] = value
	}

	return resolved, nil
}

var templatePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// Render substitutes {{name}} markers in a template from the given vars.
// Dotted names traverse nested maps. A missing name is an error; a string
// without markers passes through unchanged.
func Render(vertexID, template string, vars map[string]any) (string, error) {
	var missing *MissingTemplateVariableError

	rendered := templatePattern.ReplaceAllStringFunc(template, func(match string) string {
		name := templatePattern.FindStringSubmatch(match)[1]
		value, ok := lookupPath(vars, name)
		if !ok {
			if missing == nil {
				missing = &MissingTemplateVariableError{Vertex: vertexID, Name: name}
			}
			return match
		}
		return formatValue(value)
	})

	if missing != nil {
		return "", missing
	}
	return rendered, nil
}

func lookupPath(vars map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = vars
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", value)
}
