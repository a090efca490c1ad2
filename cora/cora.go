// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cora provides tools to download and parse the Cora citation dataset,
// from the LINQS collection (https://linqs.org/datasets/).
//
// Cora is a citation graph of 2708 machine-learning papers: each node is a paper
// with a sparse bag-of-words feature vector (1433 words, binary) and one of 7
// subject classes; each edge is a citation between two papers.
//
// After calling Load, the parsed data is available as package-level frozen
// tensors (Features, Labels, edge tensors and splits), which can be uploaded to
// a context with UploadCoraVariables for models to read, and wrapped into
// train.Dataset objects with MakeDatasets.
package cora

import (
	"github.com/gomlx/gomlx/ml/data"
)

const (
	// DownloadURL is the location of the `cora.tgz` archive with the dataset.
	DownloadURL = "https://linqs-data.soe.ucsc.edu/public/lbc/cora.tgz"

	// TarName is the local file name for the downloaded archive.
	TarName = "cora.tgz"

	// DownloadSubdir is the directory created when un-taring the archive.
	// It holds the two files of the dataset: `cora.content` and `cora.cites`.
	DownloadSubdir = "cora"
)

const (
	// NumNodes is the number of papers (nodes) in the citation graph.
	NumNodes = 2708

	// NumFeatures is the size of the bag-of-words feature vector of each paper.
	NumFeatures = 1433

	// NumClasses is the number of paper subject classes.
	NumClasses = 7

	// NumCitations is the number of (directed) citation edges in `cora.cites`.
	NumCitations = 5429
)

// Split sizes, fixed at load time. The splits are deterministic and disjoint:
// the train split takes the first NumTrainPerClass papers of each class in node
// order, the validation split the next NumValidationNodes papers not in train,
// and the test split the last NumTestNodes papers.
const (
	NumTrainPerClass   = 20
	NumTrainNodes      = NumTrainPerClass * NumClasses
	NumValidationNodes = 500
	NumTestNodes       = 1000
)

// ClassNames of the 7 paper subjects, in the order of their label values.
var ClassNames = []string{
	"Case_Based",
	"Genetic_Algorithms",
	"Neural_Networks",
	"Probabilistic_Methods",
	"Reinforcement_Learning",
	"Rule_Learning",
	"Theory",
}

// Download the Cora dataset to the given directory, if it hasn't been
// downloaded already. The dataset is tiny (a few hundred KB compressed).
//
// No checksum is verified: the LINQS server re-compresses the archive
// over time, which would invalidate a pinned hash.
func Download(baseDir string) error {
	return data.DownloadAndUntarIfMissing(DownloadURL, baseDir, TarName, DownloadSubdir, "")
}
