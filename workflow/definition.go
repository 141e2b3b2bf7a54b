package workflow

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type workflowDef struct {
	Name     string      `yaml:"name"`
	Vertices []vertexDef `yaml:"vertices"`
	Edges    []edgeDef   `yaml:"edges"`
}

type vertexDef struct {
	ID       string       `yaml:"id"`
	Kind     string       `yaml:"kind"`
	Func     string       `yaml:"func,omitempty"`
	Keys     []string     `yaml:"keys,omitempty"`
	Bindings []bindingDef `yaml:"bindings,omitempty"`
}

type bindingDef struct {
	Scope string `yaml:"scope"`
	Var   string `yaml:"var"`
	As    string `yaml:"as"`
}

type edgeDef struct {
	From    string    `yaml:"from"`
	To      string    `yaml:"to"`
	OnError bool      `yaml:"on_error,omitempty"`
	Guard   *guardDef `yaml:"guard,omitempty"`
}

type guardDef struct {
	Field  string `yaml:"field"`
	Equals any    `yaml:"equals"`
}

// Load reads a YAML workflow definition. Function and if vertices name
// their tasks, which the caller supplies through funcs. Kinds that need
// live collaborators (llm, vector, memory, groups) are built
// programmatically, not from YAML.
func Load(r io.Reader, funcs map[string]Task) (*Workflow, error) {
	var def workflowDef
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}

	w := New(def.Name)
	for _, vd := range def.Vertices {
		v, err := buildVertex(vd, funcs)
		if err != nil {
			return nil, err
		}
		if err := w.AddVertex(v); err != nil {
			return nil, err
		}
	}

	for _, ed := range def.Edges {
		switch {
		case ed.OnError:
			w.AddErrorEdge(ed.From, ed.To)
		case ed.Guard != nil:
			w.AddConditionalEdge(ed.From, ed.To, Equals(ed.Guard.Field, ed.Guard.Equals))
		default:
			w.AddEdge(ed.From, ed.To)
		}
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadFile reads a YAML workflow definition from disk.
func LoadFile(path string, funcs map[string]Task) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow definition: %w", err)
	}
	defer f.Close()
	return Load(f, funcs)
}

func buildVertex(vd vertexDef, funcs map[string]Task) (*Vertex, error) {
	if vd.ID == "" {
		return nil, fmt.Errorf("workflow definition has a vertex without an id")
	}

	bindings := make([]Binding, 0, len(vd.Bindings))
	for _, bd := range vd.Bindings {
		bindings = append(bindings, Binding{Scope: bd.Scope, Var: bd.Var, As: bd.As})
	}

	switch Kind(vd.Kind) {
	case KindSource:
		return NewSource(vd.ID, vd.Keys...), nil
	case KindSink:
		return NewSink(vd.ID, bindings...), nil
	case KindFunction, KindIf:
		fn, ok := funcs[vd.Func]
		if !ok {
			return nil, fmt.Errorf("vertex %q references unregistered function %q", vd.ID, vd.Func)
		}
		return &Vertex{ID: vd.ID, Kind: Kind(vd.Kind), Bindings: bindings, task: fn}, nil
	default:
		return nil, fmt.Errorf("vertex %q: kind %q cannot be loaded from a definition file", vd.ID, vd.Kind)
	}
}
