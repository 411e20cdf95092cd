// Package export renders the final e-graph, trace and candidates as the
// JSON documents read by the viewer.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/gnoswap-labs/witness/internal/candidate"
	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/saturate"
)

// Document names as served and written to disk.
const (
	GraphFile = "graph.json"
	TraceFile = "trace.json"
	NBestFile = "nbest.json"
)

// EmptyLabel labels a class without member nodes.
const EmptyLabel = "ε"

type GraphNode struct {
	ID    egraph.ClassID `json:"id"`
	Label string         `json:"label"`
	Ache  float64        `json:"ache"`
}

// GraphLink is one edge from a class to a child class of one of its nodes.
// Iter is always zero; edges carry no provenance.
type GraphLink struct {
	Source egraph.ClassID `json:"source"`
	Target egraph.ClassID `json:"target"`
	Op     string         `json:"op"`
	Iter   int            `json:"iter"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// ExportGraph snapshots every live class of g and every node-to-child
// edge. The result holds no reference into g.
func ExportGraph(g *egraph.EGraph) Graph {
	out := Graph{Nodes: []GraphNode{}, Links: []GraphLink{}}
	for _, class := range g.Classes() {
		label := EmptyLabel
		if len(class.Nodes) > 0 {
			label = class.Nodes[0].String()
		}
		out.Nodes = append(out.Nodes, GraphNode{
			ID:    class.ID,
			Label: label,
			Ache:  class.Data.Sum(),
		})
		for _, n := range class.Nodes {
			for _, c := range n.Children {
				out.Links = append(out.Links, GraphLink{
					Source: class.ID,
					Target: g.Find(c),
					Op:     n.String(),
				})
			}
		}
	}
	return out
}

// Document is one serialized output with its content digest.
type Document struct {
	Name   string
	Body   []byte
	Digest digest.Digest
}

func newDocument(name string, v any) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return Document{Name: name, Body: body, Digest: digest.FromBytes(body)}, nil
}

// Documents are the three outputs of a run.
type Documents struct {
	Graph Document
	Trace Document
	NBest Document
}

// Render serializes the outputs. Nil slices are written as empty arrays.
func Render(graph Graph, trace []saturate.Event, candidates []candidate.Candidate) (Documents, error) {
	if trace == nil {
		trace = []saturate.Event{}
	}
	if candidates == nil {
		candidates = []candidate.Candidate{}
	}
	var docs Documents
	var err error
	if docs.Graph, err = newDocument(GraphFile, graph); err != nil {
		return Documents{}, err
	}
	if docs.Trace, err = newDocument(TraceFile, trace); err != nil {
		return Documents{}, err
	}
	if docs.NBest, err = newDocument(NBestFile, candidates); err != nil {
		return Documents{}, err
	}
	return docs, nil
}

// All returns the documents in a fixed order.
func (d Documents) All() []Document {
	return []Document{d.Graph, d.Trace, d.NBest}
}

// Lookup returns the document with the given file name.
func (d Documents) Lookup(name string) (Document, bool) {
	for _, doc := range d.All() {
		if doc.Name == name {
			return doc, true
		}
	}
	return Document{}, false
}

// WriteDir writes every document into dir, creating it if needed.
func (d Documents) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, doc := range d.All() {
		path := filepath.Join(dir, doc.Name)
		if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
