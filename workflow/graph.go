package workflow

// Edge connects two vertices. A nil Guard fires whenever the producer
// completes; an OnError edge fires only when the producer fails.
type Edge struct {
	From    string
	To      string
	Guard   Guard
	OnError bool
}

// Workflow is a directed graph of vertices. Build it with AddVertex and
// AddEdge, then Validate before running. A Workflow is immutable during a
// run and may back multiple concurrent runs.
type Workflow struct {
	name     string
	vertices map[string]*Vertex
	order    []string
	edges    []Edge
}

// New creates an empty workflow.
func New(name string) *Workflow {
	return &Workflow{
		name:     name,
		vertices: make(map[string]*Vertex),
	}
}

// Name returns the workflow's label.
func (w *Workflow) Name() string { return w.name }

// AddVertex adds a vertex, rejecting duplicate ids.
func (w *Workflow) AddVertex(v *Vertex) error {
	if _, exists := w.vertices[v.ID]; exists {
		return &DuplicateVertexError{ID: v.ID}
	}
	w.vertices[v.ID] = v
	w.order = append(w.order, v.ID)
	return nil
}

// AddEdge connects from to to with an unconditional edge.
func (w *Workflow) AddEdge(from, to string) {
	w.edges = append(w.edges, Edge{From: from, To: to})
}

// AddConditionalEdge connects from to to, firing only when the guard
// evaluates true against the producer's output.
func (w *Workflow) AddConditionalEdge(from, to string, guard Guard) {
	w.edges = append(w.edges, Edge{From: from, To: to, Guard: guard})
}

// AddErrorEdge connects from to to, firing only when the producer fails.
// The target receives the failure under "error" and "failed_vertex".
func (w *Workflow) AddErrorEdge(from, to string) {
	w.edges = append(w.edges, Edge{From: from, To: to, OnError: true})
}

// Vertex returns a vertex by id.
func (w *Workflow) Vertex(id string) (*Vertex, bool) {
	v, ok := w.vertices[id]
	return v, ok
}

// Vertices returns vertex ids in insertion order.
func (w *Workflow) Vertices() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// Edges returns a copy of the edge list.
func (w *Workflow) Edges() []Edge {
	out := make([]Edge, len(w.edges))
	copy(out, w.edges)
	return out
}

// Validate checks the graph's structural invariants: edge endpoints exist,
// bindings reference known scopes, the graph is acyclic, and group
// exposures name inner vertices. Nested subgraphs are validated
// recursively. Validate is pure and idempotent.
func (w *Workflow) Validate() error {
	for _, e := range w.edges {
		if _, ok := w.vertices[e.From]; !ok {
			return &DanglingEdgeError{From: e.From, To: e.To}
		}
		if _, ok := w.vertices[e.To]; !ok {
			return &DanglingEdgeError{From: e.From, To: e.To}
		}
	}

	for _, id := range w.order {
		v := w.vertices[id]
		for _, b := range v.Bindings {
			if b.Var == "" && b.As == "" {
				return &InvalidBindingError{Vertex: id, Reason: "binding needs a source var or a local name"}
			}
			switch b.Scope {
			case ScopeInput, ScopeSource, ScopeEnv:
			default:
				if _, ok := w.vertices[b.Scope]; !ok {
					return &InvalidBindingError{Vertex: id, Reason: "unknown producer scope " + b.Scope}
				}
			}
		}
	}

	if err := w.detectCycle(); err != nil {
		return err
	}

	for _, id := range w.order {
		v := w.vertices[id]
		if v.inner == nil {
			continue
		}
		if err := v.inner.Validate(); err != nil {
			return err
		}
		for _, exp := range v.exposures {
			if _, ok := v.inner.vertices[exp.Vertex]; !ok {
				return &ExposedOutputError{Group: id, Vertex: exp.Vertex}
			}
		}
	}

	return nil
}

// detectCycle runs Kahn's algorithm over this level's edges. Inner
// subgraphs are separate levels and checked on their own.
func (w *Workflow) detectCycle() error {
	inbound := make(map[string]int, len(w.vertices))
	adjacent := make(map[string][]string, len(w.vertices))
	for id := range w.vertices {
		inbound[id] = 0
	}
	for _, e := range w.edges {
		adjacent[e.From] = append(adjacent[e.From], e.To)
		inbound[e.To]++
	}

	queue := make([]string, 0, len(w.vertices))
	for _, id := range w.order {
		if inbound[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacent[id] {
			inbound[next]--
			if inbound[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(w.vertices) {
		var cycle []string
		for _, id := range w.order {
			if inbound[id] > 0 {
				cycle = append(cycle, id)
			}
		}
		return &CycleError{Vertices: cycle}
	}
	return nil
}
