// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package classifier serves a trained GraphSAGE Cora model for inference.
//
// It loads a model checkpoint and the dataset, and offers a Classify method
// that returns the predicted subject class of any paper of the citation graph,
// by paper ID.
//
// This is an example of how to serve a model for inference.
package classifier

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/graphsage"
	"github.com/gomlx/graphsage/cora"
)

// Classifier holds the GraphSAGE model compiled for inference.
// The backend can be configured with GOMLX_BACKEND.
type Classifier struct {
	backend backends.Backend

	// ctx with the model's weights and the frozen dataset variables.
	ctx *context.Context

	// exec is used to execute the model with a context.
	exec *context.Exec
}

// New creates a Classifier from a trained model checkpoint, loading the Cora
// dataset from dataDir (downloading it if needed).
func New(checkpointDir, dataDir string) (*Classifier, error) {
	if err := cora.Load(dataDir); err != nil {
		return nil, err
	}
	c := &Classifier{
		backend: backends.New(),
		ctx:     context.New(),
	}
	cora.UploadCoraVariables(c.ctx)

	// All hyperparameters are read from the checkpoint as well, so the same
	// model is built.
	if _, err := checkpoints.Load(c.ctx).Dir(checkpointDir).Done(); err != nil {
		return nil, errors.WithMessagef(err, "failed while loading GraphSAGE model from %q", checkpointDir)
	}

	c.exec = context.NewExec(c.backend, c.ctx, func(ctx *context.Context, seeds *graph.Node) *graph.Node {
		logits := graphsage.ModelGraph(ctx, nil, []*graph.Node{seeds})[0]
		// Take the class with the highest logit and drop the batch dimension.
		choice := graph.ArgMax(logits, -1, dtypes.Int32)
		return graph.Reshape(choice) // No dimensions given means a scalar.
	})
	return c, nil
}

// Classify returns the predicted class of the paper with the given ID, in
// [0, cora.NumClasses). Use cora.ClassNames to convert it to a subject name.
func (c *Classifier) Classify(paperID string) (int32, error) {
	nodeIdx, found := cora.IDToIndex[paperID]
	if !found {
		return 0, errors.Errorf("paper id %q is not part of the Cora dataset", paperID)
	}
	seeds := tensors.FromValue([][]int32{{nodeIdx}})
	var outputs []*tensors.Tensor
	err := exceptions.TryCatch[error](func() { outputs = c.exec.Call(seeds) })
	if err != nil {
		return 0, err
	}
	return tensors.ToScalar[int32](outputs[0]), nil
}

// ClassifyName is like Classify, but returns the predicted subject name.
func (c *Classifier) ClassifyName(paperID string) (string, error) {
	classIdx, err := c.Classify(paperID)
	if err != nil {
		return "", err
	}
	return cora.ClassNames[classIdx], nil
}
