// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graphsage

// Tests will download the Cora dataset (if not yet downloaded) into the
// directory given by --data, by default `~/work/cora`.

import (
	"flag"
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/graphsage/cora"

	_ "github.com/gomlx/gomlx/backends/default"
)

var flagDataDir = flag.String("data", "~/work/cora", "Directory to cache downloaded dataset files.")

func TestModelGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that downloads the Cora dataset.")
	}
	backend := graphtest.BuildTestBackend()
	ctx := CreateDefaultContext()
	require.NoError(t, cora.Load(*flagDataDir))
	cora.UploadCoraVariables(ctx)

	trainDS, _, _, testEvalDS, err := cora.MakeDatasets(backend)
	require.NoError(t, err)

	exec := context.NewExec(backend, ctx, func(ctx *context.Context, inputs []*Node) []*Node {
		return ModelGraph(ctx, nil, inputs)
	})

	_, inputs, _, err := trainDS.Yield()
	require.NoError(t, err)
	outputs := exec.Call(inputs[0])
	require.NoError(t, outputs[0].Shape().Check(dtypes.Float32, cora.NumTrainNodes, cora.NumClasses))

	// Running the model without a trainer must not touch the parameters.
	weightsVar := ctx.GetVariableByScopeAndName("/model/readout/dense", "weights")
	require.NotNil(t, weightsVar)
	weightsBefore := tensors.CopyFlatData[float32](weightsVar.Value())

	_, inputs, _, err = testEvalDS.Yield()
	require.NoError(t, err)
	outputs = exec.Call(inputs[0])
	require.NoError(t, outputs[0].Shape().Check(dtypes.Float32, cora.NumTestNodes, cora.NumClasses))

	require.Equal(t, weightsBefore, tensors.CopyFlatData[float32](weightsVar.Value()))
}
