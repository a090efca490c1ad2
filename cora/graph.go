// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cora

import (
	"slices"

	"github.com/katalvlaran/lvlath/core"
	"github.com/pkg/errors"
)

// buildCitationGraph assembles the mutable citation graph from the parsed
// papers and citation pairs, using lvlath's adjacency-list graph.
//
// Citations are loaded as undirected edges -- a citation lets information flow
// both ways during neighborhood aggregation. Self-citations and duplicate
// pairs, both present in the raw files, are dropped.
func buildCitationGraph(paperIDs []string, cites [][2]int32) (*core.Graph, error) {
	g, err := core.NewGraph() // Undirected, unweighted.
	if err != nil {
		return nil, errors.Wrap(err, "creating citation graph")
	}
	for _, id := range paperIDs {
		if err := g.AddVertex(id); err != nil {
			return nil, errors.Wrapf(err, "adding paper %q", id)
		}
	}
	for _, pair := range cites {
		citing, cited := paperIDs[pair[0]], paperIDs[pair[1]]
		if citing == cited || g.HasEdge(citing, cited) {
			continue
		}
		if _, err := g.AddEdge(citing, cited, 0); err != nil {
			return nil, errors.Wrapf(err, "adding citation %q->%q", citing, cited)
		}
	}
	return g, nil
}

// CitationGraph is the frozen, immutable form of the citation graph: a CSR
// (compressed sparse row) adjacency over dense node indices, with sorted,
// deduplicated neighbor lists. It is built once at load time and after that
// only read, both for neighbor lookups and to derive the edge tensors fed to
// the model.
type CitationGraph struct {
	offsets   []int32 // len NumNodes+1.
	neighbors []int32 // Symmetric: v in neighbors(u) <=> u in neighbors(v).
}

// freezeCitationGraph converts the mutable graph into its immutable CSR form.
// Neighbor lists follow the dense node index order given by paperIDs.
func freezeCitationGraph(g *core.Graph, paperIDs []string, idToIndex map[string]int32) (*CitationGraph, error) {
	frozen := &CitationGraph{
		offsets:   make([]int32, 1, len(paperIDs)+1),
		neighbors: make([]int32, 0, 2*g.EdgeCount()),
	}
	for _, id := range paperIDs {
		neighborIDs, err := g.NeighborIDs(id)
		if err != nil {
			return nil, errors.Wrapf(err, "listing neighbors of paper %q", id)
		}
		start := len(frozen.neighbors)
		for _, neighborID := range neighborIDs {
			idx, found := idToIndex[neighborID]
			if !found {
				return nil, errors.Errorf("graph vertex %q is not a known paper", neighborID)
			}
			frozen.neighbors = append(frozen.neighbors, idx)
		}
		slices.Sort(frozen.neighbors[start:])
		frozen.offsets = append(frozen.offsets, int32(len(frozen.neighbors)))
	}
	return frozen, nil
}

// NumNodes in the frozen graph.
func (c *CitationGraph) NumNodes() int { return len(c.offsets) - 1 }

// NumEdges returns the number of undirected edges.
func (c *CitationGraph) NumEdges() int { return len(c.neighbors) / 2 }

// NeighborsOf returns the sorted neighbor indices of a node. The returned
// slice aliases the frozen storage and must not be modified.
func (c *CitationGraph) NeighborsOf(node int32) []int32 {
	return c.neighbors[c.offsets[node]:c.offsets[node+1]]
}

// Degree of the given node.
func (c *CitationGraph) Degree(node int32) int {
	return int(c.offsets[node+1] - c.offsets[node])
}

// EdgeList returns the symmetric edge list as parallel (source, target)
// slices: every undirected edge appears in both directions, ordered by target
// node and then by source. This is the layout the aggregation kernels consume:
// messages are gathered from sources and summed onto targets.
func (c *CitationGraph) EdgeList() (sources, targets []int32) {
	sources = make([]int32, 0, len(c.neighbors))
	targets = make([]int32, 0, len(c.neighbors))
	for node := 0; node < c.NumNodes(); node++ {
		for _, neighbor := range c.NeighborsOf(int32(node)) {
			sources = append(sources, neighbor)
			targets = append(targets, int32(node))
		}
	}
	return
}
