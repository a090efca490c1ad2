// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// GraphSAGE trainer for semi-supervised node classification on the Cora
// citation dataset.
//
// It downloads the dataset on first use (a few hundred KB), trains full-batch
// for `train_steps` epochs and prints the accuracy on the train, validation
// and test splits. All hyperparameters can be set with `--set`, e.g.:
//
//	go run ./demo --set "sage_aggregator=pool;sage_hidden_dim=32"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/graphsage"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/xla"
)

var (
	flagDataDir    = flag.String("data", "~/work/cora", "Directory to cache the downloaded dataset and checkpoints.")
	flagCheckpoint = flag.String("checkpoint", "", "Checkpoint subdirectory under --data. If empty, no checkpoint is saved.")
	flagEval       = flag.Bool("eval", false, "Skip training and only evaluate the checkpointed model (requires --checkpoint).")
)

func main() {
	ctx := graphsage.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	must.M1(commandline.ParseContextSettings(ctx, *settings))
	if *flagCheckpoint != "" {
		ctx.SetParam(graphsage.ParamCheckpointPath, *flagCheckpoint)
	}

	*flagDataDir = data.ReplaceTildeInDir(*flagDataDir)
	if !data.FileExists(*flagDataDir) {
		must.M(os.MkdirAll(*flagDataDir, 0777))
	}

	var err error
	if *flagEval {
		err = graphsage.Eval(ctx, *flagDataDir)
	} else {
		err = graphsage.Train(ctx, *flagDataDir)
	}
	if err != nil {
		fmt.Printf("Error: %+v\n", err)
		os.Exit(1)
	}
}
