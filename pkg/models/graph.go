package models

import "strings"

// GraphNode is a serialized call-graph node.
type GraphNode struct {
	ID            string `json:"id"`
	QualifiedName string `json:"qualified_name"`
	File          string `json:"file"`
	Line          int    `json:"line"`
	InDegree      int    `json:"in_degree"`
	OutDegree     int    `json:"out_degree"`
}

// GraphEdge is a serialized call-graph edge.
type GraphEdge struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Kind       CallKind `json:"kind"`
	Count      int      `json:"count"`
	Provenance []string `json:"provenance,omitempty"`
}

// GraphSummary provides aggregate statistics for a call graph.
type GraphSummary struct {
	TotalNodes      int              `json:"total_nodes"`
	TotalEdges      int              `json:"total_edges"`
	EdgesByKind     map[CallKind]int `json:"edges_by_kind"`
	Unresolved      int              `json:"unresolved"`
	Dropped         int              `json:"dropped"`
	Patterns        int              `json:"patterns"`
	RecursionGroups int              `json:"recursion_groups"`
	FilesAnalyzed   int              `json:"files_analyzed"`
	FilesSkipped    int              `json:"files_skipped"`
}

// CallGraphDocument is the full serialized graph.
type CallGraphDocument struct {
	Nodes    []GraphNode       `json:"nodes"`
	Edges    []GraphEdge       `json:"edges"`
	Patterns []PatternInstance `json:"patterns,omitempty"`
	Summary  GraphSummary      `json:"summary"`
}

// NewCallGraphDocument creates an empty document.
func NewCallGraphDocument() *CallGraphDocument {
	return &CallGraphDocument{
		Nodes: make([]GraphNode, 0),
		Edges: make([]GraphEdge, 0),
		Summary: GraphSummary{
			EdgesByKind: make(map[CallKind]int),
		},
	}
}

// ToMermaid generates Mermaid diagram syntax from the document.
func (g *CallGraphDocument) ToMermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	for _, node := range g.Nodes {
		label := node.QualifiedName
		if label == "" {
			label = node.ID
		}
		b.WriteString("    " + sanitizeMermaidID(node.ID) + "[\"" + label + "\"]\n")
	}

	for _, edge := range g.Edges {
		arrow := "-->"
		switch edge.Kind {
		case CallDynamic:
			arrow = "-.->"
		case CallPatternDispatch:
			arrow = "-.->|dispatch|"
		}
		b.WriteString("    " + sanitizeMermaidID(edge.From) + " " + arrow + " " + sanitizeMermaidID(edge.To) + "\n")
	}

	return b.String()
}

// sanitizeMermaidID makes an ID safe for Mermaid.
func sanitizeMermaidID(id string) string {
	var b strings.Builder
	for _, c := range id {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
