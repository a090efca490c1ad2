// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cora

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// rawData holds the parsed `cora.content` file, before conversion to tensors.
//
// Node indices are dense, assigned in file order, so parsing is deterministic.
type rawData struct {
	// features is a flat [NumNodes, NumFeatures] row-major matrix.
	features []float32

	// labels has one class per node, in [0, NumClasses).
	labels []int32

	// paperIDs maps node index to the paper ID used in the dataset files.
	paperIDs []string

	// idToIndex is the reverse of paperIDs.
	idToIndex map[string]int32
}

// parseContent reads a `cora.content` file: one line per paper, tab-separated,
// with the paper ID, NumFeatures binary word indicators and the class name.
func parseContent(r io.Reader) (*rawData, error) {
	raw := &rawData{
		features:  make([]float32, 0, NumNodes*NumFeatures),
		labels:    make([]int32, 0, NumNodes),
		paperIDs:  make([]string, 0, NumNodes),
		idToIndex: make(map[string]int32, NumNodes),
	}
	classToLabel := make(map[string]int32, NumClasses)
	for ii, name := range ClassNames {
		classToLabel[name] = int32(ii)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 16*1024), 16*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != NumFeatures+2 {
			return nil, errors.Errorf("cora.content:%d: expected %d tab-separated fields, got %d",
				lineNum, NumFeatures+2, len(fields))
		}
		paperID := fields[0]
		if _, found := raw.idToIndex[paperID]; found {
			return nil, errors.Errorf("cora.content:%d: duplicate paper id %q", lineNum, paperID)
		}
		label, found := classToLabel[fields[len(fields)-1]]
		if !found {
			return nil, errors.Errorf("cora.content:%d: unknown class %q", lineNum, fields[len(fields)-1])
		}
		for _, word := range fields[1 : len(fields)-1] {
			switch word {
			case "0":
				raw.features = append(raw.features, 0)
			case "1":
				raw.features = append(raw.features, 1)
			default:
				return nil, errors.Errorf("cora.content:%d: word indicator must be 0 or 1, got %q", lineNum, word)
			}
		}
		raw.idToIndex[paperID] = int32(len(raw.paperIDs))
		raw.paperIDs = append(raw.paperIDs, paperID)
		raw.labels = append(raw.labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading cora.content")
	}
	return raw, nil
}

// parseCites reads a `cora.cites` file: one citation per line, tab-separated,
// as `<cited> <citing>` paper IDs. It returns directed (citing, cited) pairs of
// node indices.
func (raw *rawData) parseCites(r io.Reader) ([][2]int32, error) {
	cites := make([][2]int32, 0, NumCitations)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("cora.cites:%d: expected 2 paper ids, got %d fields", lineNum, len(fields))
		}
		cited, found := raw.idToIndex[fields[0]]
		if !found {
			return nil, errors.Errorf("cora.cites:%d: unknown cited paper id %q", lineNum, fields[0])
		}
		citing, found := raw.idToIndex[fields[1]]
		if !found {
			return nil, errors.Errorf("cora.cites:%d: unknown citing paper id %q", lineNum, fields[1])
		}
		cites = append(cites, [2]int32{citing, cited})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading cora.cites")
	}
	return cites, nil
}

// normalizeRows scales each row of the flat row-major matrix to sum to 1.
// Rows that sum to zero are left untouched.
func normalizeRows(matrix []float32, numRows, numCols int) {
	for row := 0; row < numRows; row++ {
		values := matrix[row*numCols : (row+1)*numCols]
		var sum float32
		for _, v := range values {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for ii := range values {
			values[ii] /= sum
		}
	}
}

// makeSplits builds the deterministic train/validation/test node index sets
// from the label vector: the first NumTrainPerClass nodes of each class (in
// node order) for training, the next NumValidationNodes non-train nodes for
// validation and the last NumTestNodes nodes for testing.
//
// It returns an error if the sets would overlap -- for Cora's class balance
// they never do.
func makeSplits(labels []int32) (train, validation, test []int32, err error) {
	numNodes := len(labels)
	testStart := int32(numNodes - NumTestNodes)

	perClass := make([]int, NumClasses)
	inTrain := make(map[int32]bool, NumTrainNodes)
	train = make([]int32, 0, NumTrainNodes)
	for idx, label := range labels {
		if perClass[label] >= NumTrainPerClass {
			continue
		}
		perClass[label]++
		train = append(train, int32(idx))
		inTrain[int32(idx)] = true
		if len(train) == NumTrainNodes {
			break
		}
	}
	if len(train) < NumTrainNodes {
		return nil, nil, nil, errors.Errorf(
			"not enough nodes to draw %d train examples per class, got only %d of %d",
			NumTrainPerClass, len(train), NumTrainNodes)
	}

	validation = make([]int32, 0, NumValidationNodes)
	for idx := int32(0); idx < testStart && len(validation) < NumValidationNodes; idx++ {
		if inTrain[idx] {
			continue
		}
		validation = append(validation, idx)
	}
	if len(validation) < NumValidationNodes {
		return nil, nil, nil, errors.Errorf(
			"not enough nodes for a validation split of %d", NumValidationNodes)
	}

	for _, idx := range train {
		if idx >= testStart {
			return nil, nil, nil, errors.Errorf(
				"train node %d overlaps the test split (starting at %d)", idx, testStart)
		}
	}
	test = make([]int32, 0, NumTestNodes)
	for idx := testStart; idx < int32(numNodes); idx++ {
		test = append(test, idx)
	}
	return
}
