// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sage

import (
	"fmt"
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

// testGraphInputs builds the path graph 0 -- 1 -- 2 plus the isolated node 3,
// as tensors: states per node, symmetric edge list and neighbor counts.
func testGraphInputs() (state, edgeSources, edgeTargets, degrees *tensors.Tensor) {
	state = tensors.FromValue([][]float32{{1, 0}, {0, 1}, {2, 2}, {-1, 3}})
	edgeSources = tensors.FromValue([]int32{1, 0, 2, 1})
	edgeTargets = tensors.FromValue([]int32{0, 1, 1, 2})
	degrees = tensors.FromValue([][]float32{{1}, {2}, {1}, {0}})
	return
}

func TestNeighborsAggregation(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	state, edgeSources, edgeTargets, degrees := testGraphInputs()

	sumExec := NewExec(backend, func(state, src, tgt *Node) *Node {
		return neighborsSum(state, src, tgt)
	})
	got := sumExec.Call(state, edgeSources, edgeTargets)[0]
	assert.Equal(t, []float32{0, 1, 3, 2, 0, 1, 0, 0}, tensors.CopyFlatData[float32](got))

	// The isolated node must mean to zero, not divide by its zero degree.
	meanExec := NewExec(backend, func(state, src, tgt, deg *Node) *Node {
		return neighborsMean(state, src, tgt, deg)
	})
	got = meanExec.Call(state, edgeSources, edgeTargets, degrees)[0]
	assert.Equal(t, []float32{0, 1, 1.5, 1, 0, 1, 0, 0}, tensors.CopyFlatData[float32](got))

	// Element-wise max per target: node 1 sees both ends of the path.
	maxExec := NewExec(backend, func(state, src, tgt *Node) *Node {
		return neighborsMax(state, src, tgt)
	})
	got = maxExec.Call(state, edgeSources, edgeTargets)[0]
	assert.Equal(t, []float32{0, 1, 2, 2, 0, 1, 0, 0}, tensors.CopyFlatData[float32](got))
}

func TestConv(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	state, edgeSources, edgeTargets, degrees := testGraphInputs()

	for _, aggregator := range KnownAggregators {
		t.Run(aggregator, func(t *testing.T) {
			ctx := context.New()
			ctx.SetParam(ParamAggregator, aggregator)
			exec := context.NewExec(backend, ctx, func(ctx *context.Context, inputs []*Node) []*Node {
				return []*Node{Conv(ctx, inputs[0], inputs[1], inputs[2], inputs[3], 8)}
			})
			outputs := exec.Call(state, edgeSources, edgeTargets, degrees)
			require.NoError(t, outputs[0].Shape().Check(dtypes.Float32, 4, 8))
		})
	}
}

func TestEmbeddingsLayerCount(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	state, edgeSources, edgeTargets, degrees := testGraphInputs()

	const numLayers = 3
	const hiddenDim = 4
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamNumLayers: numLayers,
		ParamHiddenDim: hiddenDim,
	})
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, inputs []*Node) []*Node {
		return []*Node{Embeddings(ctx.In("sage"), inputs[0], inputs[1], inputs[2], inputs[3])}
	})
	outputs := exec.Call(state, edgeSources, edgeTargets, degrees)
	require.NoError(t, outputs[0].Shape().Check(dtypes.Float32, 4, hiddenDim))

	// One dense kernel was created per configured convolution, and no more.
	// layers.Dense puts its variables under a "dense" subscope.
	for layer := range numLayers {
		scope := fmt.Sprintf("/sage/conv_%d/dense", layer)
		assert.NotNil(t, ctx.GetVariableByScopeAndName(scope, "weights"), "missing dense kernel in %s", scope)
	}
	assert.Nil(t, ctx.GetVariableByScopeAndName(fmt.Sprintf("/sage/conv_%d/dense", numLayers), "weights"))
}
