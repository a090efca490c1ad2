// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphsage trains a GraphSAGE model for semi-supervised node
// classification on the Cora citation dataset.
//
// The graph structure and node features are static: they are uploaded once as
// frozen variables (see cora.UploadCoraVariables) and every training step runs
// the convolutions over the full graph, reading out only the logits of the
// seed nodes yielded by the dataset -- the labeled train split during
// training, the validation or test splits during evaluation.
//
// See `demo/` for a command-line trainer.
package graphsage

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/layers"

	"github.com/gomlx/graphsage/cora"
	"github.com/gomlx/graphsage/sage"
)

// getCoraVar retrieves one of the static (not learnable) Cora dataset
// variables -- e.g. the features matrix or the frozen edge list.
func getCoraVar(ctx *context.Context, g *Graph, name string) *Node {
	coraVar := ctx.GetVariableByScopeAndName(cora.CoraVariablesScope, name)
	if coraVar == nil {
		Panicf("missing Cora dataset variable %q, please call cora.UploadCoraVariables() on the context first", name)
	}
	return coraVar.ValueGraph(g)
}

// ModelGraph builds the GraphSAGE node classification model. It implements
// train.ModelFn.
//
// The single input is the batch of seed node indices, shaped Int32[batch, 1].
// It returns one tensor, the logits of the seed nodes, shaped
// Float32[batch, cora.NumClasses].
func ModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec // Same static graph for every batch.
	ctx = ctx.WithInitializer(initializers.GlorotUniformFn(ctx))
	seeds := inputs[0]
	g := seeds.Graph()

	features := getCoraVar(ctx, g, "Features")
	edgeSources := getCoraVar(ctx, g, "EdgeSources")
	edgeTargets := getCoraVar(ctx, g, "EdgeTargets")
	degrees := getCoraVar(ctx, g, "Degrees")

	ctxModel := ctx.In("model")
	state := sage.Embeddings(ctxModel.In("sage"), features, edgeSources, edgeTargets, degrees)

	// Last layer outputs the logits for the cora.NumClasses classes, for all
	// nodes; only the seed rows are read out.
	logits := layers.DenseWithBias(ctxModel.In("readout"), state, cora.NumClasses)
	seedLogits := Gather(logits, seeds)
	seedLogits.AssertDims(seeds.Shape().Dimensions[0], cora.NumClasses)
	return []*Node{seedLogits}
}
