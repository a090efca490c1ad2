// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cora

// These tests download the Cora dataset (if not yet downloaded) into the
// directory given by --data, by default `~/work/cora`.

import (
	"flag"
	"testing"

	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

var flagDataDir = flag.String("data", "~/work/cora", "Directory to cache downloaded dataset files.")

func TestLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that downloads the Cora dataset.")
	}
	require.NoError(t, Load(*flagDataDir))

	require.NoError(t, Features.Shape().Check(dtypes.Float32, NumNodes, NumFeatures))
	require.NoError(t, Labels.Shape().Check(dtypes.Int32, NumNodes, 1))
	require.NoError(t, Degrees.Shape().Check(dtypes.Float32, NumNodes, 1))
	require.NoError(t, TrainSplit.Shape().Check(dtypes.Int32, NumTrainNodes, 1))
	require.NoError(t, ValidSplit.Shape().Check(dtypes.Int32, NumValidationNodes, 1))
	require.NoError(t, TestSplit.Shape().Check(dtypes.Int32, NumTestNodes, 1))

	assert.Equal(t, NumNodes, Citations.NumNodes())
	assert.LessOrEqual(t, Citations.NumEdges(), NumCitations)
	numDirected := 2 * Citations.NumEdges()
	require.NoError(t, EdgeSources.Shape().Check(dtypes.Int32, numDirected))
	require.NoError(t, EdgeTargets.Shape().Check(dtypes.Int32, numDirected))

	// A second Load is a no-op, whatever directory it is given.
	features := Features
	require.NoError(t, Load("/nonexistent/cora"))
	assert.Same(t, features, Features)
}

func TestLoadInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that downloads the Cora dataset.")
	}
	require.NoError(t, Load(*flagDataDir))

	// Labels in range, degrees matching the frozen graph.
	for _, label := range tensors.CopyFlatData[int32](Labels) {
		assert.GreaterOrEqual(t, label, int32(0))
		assert.Less(t, label, int32(NumClasses))
	}
	for node, degree := range tensors.CopyFlatData[float32](Degrees) {
		assert.Equal(t, float32(Citations.Degree(int32(node))), degree)
	}

	// Edge endpoints in range.
	for _, idx := range tensors.CopyFlatData[int32](EdgeSources) {
		assert.GreaterOrEqual(t, idx, int32(0))
		assert.Less(t, idx, int32(NumNodes))
	}
}

func TestMakeDatasets(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that downloads the Cora dataset.")
	}
	backend := graphtest.BuildTestBackend()
	require.NoError(t, Load(*flagDataDir))

	trainDS, _, validEvalDS, _, err := MakeDatasets(backend)
	require.NoError(t, err)

	// The training dataset is infinite and full-batch.
	for range 3 {
		_, inputs, labels, err := trainDS.Yield()
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)
		require.NoError(t, inputs[0].Shape().Check(dtypes.Int32, NumTrainNodes, 1))
		require.NoError(t, labels[0].Shape().Check(dtypes.Int32, NumTrainNodes, 1))
	}

	_, inputs, _, err := validEvalDS.Yield()
	require.NoError(t, err)
	require.NoError(t, inputs[0].Shape().Check(dtypes.Int32, NumValidationNodes, 1))
}
