// Copyright 2025 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graphsage

import (
	"fmt"
	"path"
	"time"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphsage/cora"
	"github.com/gomlx/graphsage/sage"
)

const (
	// ParamCheckpointPath is the context parameter with the directory to save
	// and load checkpoints from. If empty (the default), no checkpoints are
	// created. Relative paths are taken under the data directory.
	ParamCheckpointPath = "checkpoint"

	// ParamNumCheckpoints is the number of past checkpoints to keep.
	ParamNumCheckpoints = "num_checkpoints"
)

// Backend is created once and reused if Train or Eval are called multiple times.
var Backend backends.Backend

// getBackend returns the singleton backend, creating it on first use.
func getBackend() backends.Backend {
	if Backend == nil {
		Backend = backends.New()
	}
	return Backend
}

// CreateDefaultContext creates a context with the default hyperparameters:
// a 2-layer GraphSAGE with hidden dimension 16, mean aggregator, dropout of
// 0.5, trained full-batch for 150 epochs with AdamW at learning rate 0.01 and
// L2 regularization of 5e-4. One train step covers the whole labeled split, so
// "train_steps" counts epochs.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		"train_steps":       150,
		ParamCheckpointPath: "",
		ParamNumCheckpoints: 3,

		optimizers.ParamOptimizer:    "adamw",
		optimizers.ParamLearningRate: 0.01,
		optimizers.ParamAdamEpsilon:  1e-7,
		activations.ParamActivation:  "relu",
		layers.ParamDropoutRate:      0.0,
		regularizers.ParamL2:         5e-4,

		// GraphSAGE network parameters:
		sage.ParamNumLayers:   2,
		sage.ParamHiddenDim:   16,
		sage.ParamAggregator:  "mean",
		sage.ParamDropoutRate: 0.5,
		sage.ParamNormalize:   false,
	})
	return ctx
}

// newTrainer creates the train.Trainer for the model: multi-class
// classification with cross-entropy loss and accuracy metrics.
func newTrainer(backend backends.Backend, ctx *context.Context) *train.Trainer {
	lossFn := losses.SparseCategoricalCrossEntropyLogits
	meanAccuracyMetric := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)
	return train.NewTrainer(backend, ctx, ModelGraph,
		lossFn,
		optimizers.FromContext(ctx),               // Based on `ctx.GetParam("optimizer")`.
		[]metrics.Interface{movingAccuracyMetric}, // trainMetrics
		[]metrics.Interface{meanAccuracyMetric})   // evalMetrics
}

// coraVarsToExclude lists the frozen dataset variables, which shouldn't be
// saved along with checkpoints -- they are rebuilt by cora.Load.
func coraVarsToExclude(ctx *context.Context) []*context.Variable {
	var vars []*context.Variable
	ctx.InAbsPath(cora.CoraVariablesScope).EnumerateVariablesInScope(func(v *context.Variable) {
		vars = append(vars, v)
	})
	return vars
}

// Train the GraphSAGE model based on the configuration in ctx, storing the
// dataset under baseDir. At the end it reports the accuracy on the train,
// validation and test splits.
func Train(ctx *context.Context, baseDir string) error {
	baseDir = data.ReplaceTildeInDir(baseDir)
	if err := cora.Load(baseDir); err != nil {
		return err
	}
	backend := getBackend()
	cora.UploadCoraVariables(ctx)

	// Context values (both parameters and variables) are reloaded from a
	// checkpoint, so read values we don't want overwritten first.
	trainSteps := context.GetParamOr(ctx, "train_steps", 150)

	// Checkpoint: loads if one already exists, and saves as we train.
	checkpointPath := context.GetParamOr(ctx, ParamCheckpointPath, "")
	var checkpoint *checkpoints.Handler
	if checkpointPath != "" {
		checkpointPath = data.ReplaceTildeInDir(checkpointPath)
		if !path.IsAbs(checkpointPath) {
			checkpointPath = path.Join(baseDir, checkpointPath)
		}
		numCheckpointsToKeep := context.GetParamOr(ctx, ParamNumCheckpoints, 3)
		var err error
		checkpoint, err = checkpoints.Build(ctx).
			Dir(checkpointPath).Keep(numCheckpointsToKeep).
			ExcludeVars(coraVarsToExclude(ctx)...).
			Done()
		if err != nil {
			return errors.WithMessagef(err, "while setting up checkpoint to %q", checkpointPath)
		}
		globalStep := int(optimizers.GetGlobalStep(ctx))
		if globalStep != 0 {
			fmt.Printf("> restarting training from global_step=%d (training until %d)\n", globalStep, trainSteps)
			ctx = ctx.Reuse()
		}
		if trainSteps <= globalStep {
			fmt.Printf("> training already reached target train_steps=%d. To train further, set a number additional "+
				"to the current global step. Use Eval to get a reading of the current performance.\n", trainSteps)
			return nil
		}
		trainSteps -= globalStep
	}

	trainDS, trainEvalDS, validEvalDS, testEvalDS, err := cora.MakeDatasets(backend)
	if err != nil {
		return err
	}

	trainer := newTrainer(backend, ctx)
	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop) // Attaches a progress bar to the loop.

	// Checkpoint saving while training.
	if checkpoint != nil {
		period := time.Minute
		train.PeriodicCallback(loop, period, true, "saving checkpoint", 100,
			func(loop *train.Loop, metrics []*tensors.Tensor) error {
				return checkpoint.Save()
			})
	}

	// Train for the given number of full-batch steps (epochs).
	if _, err = loop.RunSteps(trainDS, trainSteps); err != nil {
		return errors.WithMessage(err, "while running training steps")
	}
	klog.V(1).Infof("median train step duration: %s", loop.MedianTrainStepDuration())
	if checkpoint != nil {
		if err = checkpoint.Save(); err != nil {
			klog.Errorf("Failed to save final checkpoint in %q: %+v", checkpointPath, err)
		}
	}

	// Finally, print an evaluation on the train, validation and test splits.
	fmt.Println()
	if err = commandline.ReportEval(trainer, trainEvalDS, validEvalDS, testEvalDS); err != nil {
		return errors.WithMessage(err, "while reporting eval")
	}
	return nil
}

// Eval reloads a trained model from its checkpoint (configured in ctx, see
// ParamCheckpointPath) and reports its accuracy on the given datasets -- or on
// the train, validation and test splits if none are given. Inference only: no
// parameter is updated.
func Eval(ctx *context.Context, baseDir string, datasets ...train.Dataset) error {
	baseDir = data.ReplaceTildeInDir(baseDir)
	if err := cora.Load(baseDir); err != nil {
		return err
	}
	backend := getBackend()
	cora.UploadCoraVariables(ctx)

	checkpointPath := context.GetParamOr(ctx, ParamCheckpointPath, "")
	if checkpointPath == "" {
		return errors.Errorf("no checkpoint configured in Context.GetParam(%q), please set it to the checkpoint directory",
			ParamCheckpointPath)
	}
	checkpointPath = data.ReplaceTildeInDir(checkpointPath)
	if !path.IsAbs(checkpointPath) {
		checkpointPath = path.Join(baseDir, checkpointPath)
	}
	if _, err := checkpoints.Build(ctx).Dir(checkpointPath).
		ExcludeVars(coraVarsToExclude(ctx)...).
		Done(); err != nil {
		return errors.WithMessagef(err, "while loading checkpoint from %q", checkpointPath)
	}
	fmt.Printf("Model in %q trained for %d steps.\n", checkpointPath, optimizers.GetGlobalStep(ctx))

	if len(datasets) == 0 {
		_, trainEvalDS, validEvalDS, testEvalDS, err := cora.MakeDatasets(backend)
		if err != nil {
			return err
		}
		datasets = []train.Dataset{trainEvalDS, validEvalDS, testEvalDS}
	}
	trainer := newTrainer(backend, ctx)
	return commandline.ReportEval(trainer, datasets...)
}
