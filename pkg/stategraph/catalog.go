package stategraph

import (
	"fmt"
	"sort"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
)

// GraphInfo summarizes a cataloged graph.
type GraphInfo struct {
	ID        string    `json:"graph_id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	StartNode string    `json:"start_node"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog holds compiled graphs by ID. Safe for concurrent use.
//
// Deleting a graph only removes it from the catalog; runs that already
// hold the Definition keep executing it.
type Catalog struct {
	graphs *registry.Registry[string, *Definition]
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{graphs: registry.New[string, *Definition]()}
}

// Add stores def under its ID. Adding an ID that is already present fails.
func (c *Catalog) Add(def *Definition) error {
	if def == nil {
		return ErrNilDefinition
	}
	if !c.graphs.Add(def.id, def) {
		return fmt.Errorf("graph %s already exists", def.id)
	}
	return nil
}

// Get returns the graph with the given ID.
func (c *Catalog) Get(id string) (*Definition, error) {
	def, ok := c.graphs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, id)
	}
	return def, nil
}

// Delete removes a graph.
func (c *Catalog) Delete(id string) error {
	if !c.graphs.Delete(id) {
		return fmt.Errorf("%w: %s", ErrUnknownGraph, id)
	}
	return nil
}

// List summarizes every graph, oldest first.
func (c *Catalog) List() []GraphInfo {
	defs := c.graphs.Values()
	infos := make([]GraphInfo, 0, len(defs))
	for _, d := range defs {
		infos = append(infos, GraphInfo{
			ID:        d.id,
			Name:      d.name,
			NodeCount: d.NodeCount(),
			EdgeCount: d.EdgeCount(),
			StartNode: d.start,
			CreatedAt: d.createdAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the number of graphs.
func (c *Catalog) Len() int {
	return c.graphs.Len()
}
