// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sage implements GraphSAGE neighborhood-aggregation layers
// ("SAmple and aggreGatE", Hamilton et al. 2017) on top of GoMLX.
//
// The convolutions here are full-batch: they update the hidden state of every
// node of the graph at once, given a static symmetric edge list. Messages are
// gathered from edge sources, pooled per target and combined with the target's
// own state by a learned dense transform.
//
// Hyperparameters are read from the context, following the usual convention:
// see the Param... constants.
package sage

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/types/shapes"
)

const (
	// ParamNumLayers is the context hyperparameter with the number of stacked
	// convolutions. Default is 2.
	ParamNumLayers = "sage_num_layers"

	// ParamHiddenDim is the context hyperparameter with the dimension of the
	// hidden node states. Default is 16.
	ParamHiddenDim = "sage_hidden_dim"

	// ParamAggregator is the context hyperparameter selecting how neighbor
	// states are combined: "mean", "gcn" or "pool". Default is "mean".
	ParamAggregator = "sage_aggregator"

	// ParamDropoutRate is the context hyperparameter with the dropout rate
	// applied to node states before each convolution. If negative (the
	// default), it falls back to layers.ParamDropoutRate.
	ParamDropoutRate = "sage_dropout_rate"

	// ParamNormalize is the context hyperparameter that, if true, L2-normalizes
	// the node states after each convolution. Default is false.
	ParamNormalize = "sage_normalize"
)

// KnownAggregators are the valid values for ParamAggregator.
var KnownAggregators = []string{"mean", "gcn", "pool"}

// Embeddings computes hidden states for every node of the graph, by stacking
// ParamNumLayers GraphSAGE convolutions of dimension ParamHiddenDim, with
// activation (see activations.ParamActivation), dropout and optional L2
// normalization in between.
//
// Args:
//   - features: initial node states, shaped [numNodes, numFeatures].
//   - edgeSources, edgeTargets: symmetric edge list, both shaped [numEdges]
//     (integer node indices); messages flow from source to target.
//   - degrees: neighbor count per node, shaped [numNodes, 1]; zero for
//     isolated nodes.
//
// It returns the final node states, shaped [numNodes, ParamHiddenDim].
func Embeddings(ctx *context.Context, features, edgeSources, edgeTargets, degrees *Node) *Node {
	numLayers := context.GetParamOr(ctx, ParamNumLayers, 2)
	if numLayers < 1 {
		Panicf("sage: %q must be >= 1, got %d", ParamNumLayers, numLayers)
	}
	hiddenDim := context.GetParamOr(ctx, ParamHiddenDim, 16)
	normalize := context.GetParamOr(ctx, ParamNormalize, false)

	state := features
	for layer := range numLayers {
		layerCtx := ctx.Inf("conv_%d", layer)
		state = applyDropout(layerCtx, state)
		state = Conv(layerCtx, state, edgeSources, edgeTargets, degrees, hiddenDim)
		state = activations.ApplyFromContext(layerCtx, state)
		if normalize {
			state = L2NormalizeWithEpsilon(state, 1e-12, -1)
		}
	}
	return state
}

// Conv runs one GraphSAGE convolution: it pools the states of each node's
// neighbors according to ParamAggregator and applies a learned dense transform,
// returning the updated states shaped [numNodes, outputDim].
func Conv(ctx *context.Context, state, edgeSources, edgeTargets, degrees *Node, outputDim int) *Node {
	aggregator := context.GetParamOr(ctx, ParamAggregator, "mean")
	switch aggregator {
	case "mean":
		pooled := neighborsMean(state, edgeSources, edgeTargets, degrees)
		return layers.DenseWithBias(ctx, Concatenate([]*Node{state, pooled}, -1), outputDim)
	case "gcn":
		// Mean over neighbors and self, single transform (no concatenation).
		summed := neighborsSum(state, edgeSources, edgeTargets)
		pooled := Div(Add(summed, state), AddScalar(degrees, 1))
		return layers.DenseWithBias(ctx, pooled, outputDim)
	case "pool":
		// Transform each message, then element-wise max over the neighbors.
		ctxPool := ctx.In("pool")
		messages := layers.DenseWithBias(ctxPool, state, state.Shape().Dimensions[1])
		messages = activations.ApplyFromContext(ctxPool, messages)
		pooled := neighborsMax(messages, edgeSources, edgeTargets)
		return layers.DenseWithBias(ctx, Concatenate([]*Node{state, pooled}, -1), outputDim)
	}
	Panicf("sage: invalid aggregator %q (hyperparameter %q) -- valid values are %v",
		aggregator, ParamAggregator, KnownAggregators)
	return nil
}

// neighborsSum sums, for every node, the states of its neighbors: messages are
// gathered from edge sources and scatter-added onto edge targets.
func neighborsSum(state, edgeSources, edgeTargets *Node) *Node {
	numNodes := state.Shape().Dimensions[0]
	stateDim := state.Shape().Dimensions[1]
	messages := Gather(state, InsertAxes(edgeSources, -1))
	return Scatter(InsertAxes(edgeTargets, -1), messages,
		shapes.Make(state.DType(), numNodes, stateDim))
}

// neighborsMean averages the neighbor states of every node. Isolated nodes
// average to zero.
func neighborsMean(state, edgeSources, edgeTargets, degrees *Node) *Node {
	return Div(neighborsSum(state, edgeSources, edgeTargets), MaxScalar(degrees, 1))
}

// neighborsMax takes, per node, the element-wise max over its neighbors'
// states. Pooling starts from zeros, so negative maxima are clipped -- messages
// normally go through a ReLU first -- and isolated nodes pool to zero.
func neighborsMax(state, edgeSources, edgeTargets *Node) *Node {
	g := state.Graph()
	numNodes := state.Shape().Dimensions[0]
	stateDim := state.Shape().Dimensions[1]
	messages := Gather(state, InsertAxes(edgeSources, -1))
	zeros := Zeros(g, shapes.Make(state.DType(), numNodes, stateDim))
	return ScatterMax(zeros, InsertAxes(edgeTargets, -1), messages, false, false)
}

// applyDropout applies dropout with rate from ParamDropoutRate, falling back
// to layers.ParamDropoutRate if unset. No-op during inference.
func applyDropout(ctx *context.Context, x *Node) *Node {
	rate := context.GetParamOr(ctx, ParamDropoutRate, -1.0)
	if rate < 0 {
		rate = context.GetParamOr(ctx, layers.ParamDropoutRate, 0.0)
	}
	if rate <= 0 {
		return x
	}
	g := x.Graph()
	return layers.DropoutNormalize(ctx, x, Scalar(g, x.DType(), rate), true)
}
