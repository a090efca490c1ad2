// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cora

import (
	"os"
	"path"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
)

// Package-level dataset values, set by Load. They are created once and never
// mutated afterwards.
var (
	// Features is the row-normalized bag-of-words matrix, shaped
	// Float32[NumNodes, NumFeatures].
	Features *tensors.Tensor

	// Labels holds the class of each paper, shaped Int32[NumNodes, 1].
	Labels *tensors.Tensor

	// EdgeSources and EdgeTargets are the symmetric citation edge list, both
	// shaped Int32[2*NumEdges]. Message m flows from EdgeSources[m] to
	// EdgeTargets[m] during aggregation.
	EdgeSources *tensors.Tensor
	EdgeTargets *tensors.Tensor

	// Degrees is the neighbor count per node, shaped Float32[NumNodes, 1].
	// Zero for isolated nodes.
	Degrees *tensors.Tensor

	// TrainSplit, ValidSplit and TestSplit are the node indices of each split,
	// shaped Int32[n, 1] with n of 140, 500 and 1000 respectively.
	TrainSplit, ValidSplit, TestSplit *tensors.Tensor

	// Citations is the frozen citation graph, for neighbor lookups.
	Citations *CitationGraph

	// PaperIDs maps the dense node index back to the dataset's paper ID.
	PaperIDs []string

	// IDToIndex is the reverse of PaperIDs.
	IDToIndex map[string]int32
)

// CoraVariables maps context variable names to references of their values.
// References, because the tensors are only created during Load.
//
// They are stored under the CoraVariablesScope scope, see UploadCoraVariables.
var CoraVariables = map[string]**tensors.Tensor{
	"Features":    &Features,
	"Labels":      &Labels,
	"EdgeSources": &EdgeSources,
	"EdgeTargets": &EdgeTargets,
	"Degrees":     &Degrees,
}

// CoraVariablesScope is the absolute context scope holding the frozen dataset
// variables.
const CoraVariablesScope = "/cora"

// Load downloads (if needed) and parses the Cora dataset from baseDir, filling
// in the package-level tensors and the frozen citation graph.
//
// There is only one Cora dataset per process: after the first successful call
// Load is a no-op, and baseDir is ignored.
func Load(baseDir string) error {
	if Features != nil {
		return nil
	}
	baseDir = data.ReplaceTildeInDir(baseDir)
	if err := Download(baseDir); err != nil {
		return errors.WithMessage(err, "downloading Cora dataset")
	}

	contentFile, err := os.Open(path.Join(baseDir, DownloadSubdir, "cora.content"))
	if err != nil {
		return errors.Wrap(err, "opening cora.content")
	}
	defer func() { _ = contentFile.Close() }()
	raw, err := parseContent(contentFile)
	if err != nil {
		return err
	}
	if len(raw.paperIDs) != NumNodes {
		return errors.Errorf("cora.content: expected %d papers, parsed %d", NumNodes, len(raw.paperIDs))
	}

	citesFile, err := os.Open(path.Join(baseDir, DownloadSubdir, "cora.cites"))
	if err != nil {
		return errors.Wrap(err, "opening cora.cites")
	}
	defer func() { _ = citesFile.Close() }()
	cites, err := raw.parseCites(citesFile)
	if err != nil {
		return err
	}

	mutable, err := buildCitationGraph(raw.paperIDs, cites)
	if err != nil {
		return err
	}
	frozen, err := freezeCitationGraph(mutable, raw.paperIDs, raw.idToIndex)
	if err != nil {
		return err
	}

	trainIdx, validIdx, testIdx, err := makeSplits(raw.labels)
	if err != nil {
		return err
	}

	normalizeRows(raw.features, NumNodes, NumFeatures)
	sources, targets := frozen.EdgeList()
	degrees := make([]float32, NumNodes)
	for node := range degrees {
		degrees[node] = float32(frozen.Degree(int32(node)))
	}

	Features = tensors.FromFlatDataAndDimensions(raw.features, NumNodes, NumFeatures)
	Labels = tensors.FromFlatDataAndDimensions(raw.labels, NumNodes, 1)
	EdgeSources = tensors.FromFlatDataAndDimensions(sources, len(sources))
	EdgeTargets = tensors.FromFlatDataAndDimensions(targets, len(targets))
	Degrees = tensors.FromFlatDataAndDimensions(degrees, NumNodes, 1)
	TrainSplit = tensors.FromFlatDataAndDimensions(trainIdx, len(trainIdx), 1)
	ValidSplit = tensors.FromFlatDataAndDimensions(validIdx, len(validIdx), 1)
	TestSplit = tensors.FromFlatDataAndDimensions(testIdx, len(testIdx), 1)
	Citations = frozen
	PaperIDs = raw.paperIDs
	IDToIndex = raw.idToIndex
	return nil
}

// UploadCoraVariables creates frozen (non-trainable) variables with the static
// dataset tensors, under the CoraVariablesScope scope, so models can read them
// while building their computation graphs.
func UploadCoraVariables(ctx *context.Context) *context.Context {
	ctxCora := ctx.InAbsPath(CoraVariablesScope)
	for name, ref := range CoraVariables {
		if *ref == nil {
			exceptions.Panicf("cora: trying to upload dataset variables to context before calling Load()")
		}
		v := ctxCora.VariableWithValue(name, *ref)
		v.Trainable = false
	}
	return ctx
}

// splitLabels gathers the labels of the given split indices, as a new
// Int32[n, 1] tensor.
func splitLabels(split *tensors.Tensor) *tensors.Tensor {
	numRows := split.Shape().Dimensions[0]
	gathered := make([]int32, numRows)
	indices := tensors.CopyFlatData[int32](split)
	labels := tensors.CopyFlatData[int32](Labels)
	for ii, idx := range indices {
		gathered[ii] = labels[idx]
	}
	return tensors.FromFlatDataAndDimensions(gathered, numRows, 1)
}

// MakeDatasets returns the datasets used for training and evaluation, all
// full-batch: each yield carries every node index of its split, so with the
// training dataset one loop step is one epoch.
//
// Load must have been called first.
func MakeDatasets(backend backends.Backend) (trainDS, trainEvalDS, validEvalDS, testEvalDS train.Dataset, err error) {
	if Features == nil {
		err = errors.New("cora: data is not loaded yet, please call cora.Load() first")
		return
	}
	newDS := func(name string, split *tensors.Tensor, infinite bool) (train.Dataset, error) {
		ds, dsErr := data.InMemoryFromData(backend, name, []any{split}, []any{splitLabels(split)})
		if dsErr != nil {
			return nil, errors.WithMessagef(dsErr, "creating %q dataset", name)
		}
		numRows := split.Shape().Dimensions[0]
		if infinite {
			return ds.BatchSize(numRows, true).Infinite(true), nil
		}
		return ds.BatchSize(numRows, false), nil
	}
	if trainDS, err = newDS("train", TrainSplit, true); err != nil {
		return
	}
	if trainEvalDS, err = newDS("train-eval", TrainSplit, false); err != nil {
		return
	}
	if validEvalDS, err = newDS("valid-eval", ValidSplit, false); err != nil {
		return
	}
	testEvalDS, err = newDS("test-eval", TestSplit, false)
	return
}
