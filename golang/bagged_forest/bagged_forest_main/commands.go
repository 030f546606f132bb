package main

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/tarstars/bagged_uncertainty/golang/bagged_forest/bfl"
)

//options translates the engine settings into aggregation options.
func (c EngineConfig) options() []bfl.Option {
	opts := []bfl.Option{
		bfl.Batched(c.Batched),
		bfl.UseJackknife(!c.DisableJackknife),
		bfl.Workers(c.ThreadsNum),
		bfl.WithObserver(bfl.NewZapObserver(logger)),
		bfl.TieBreaker(rand.New(rand.NewSource(c.Seed))),
	}
	if c.Rescale > 0 {
		opts = append(opts, bfl.Rescale(c.Rescale))
	}
	if c.DisableBootstrap {
		opts = append(opts, bfl.DisableBootstrap())
	}
	return opts
}

//withTimeout bounds ctx by the configured timeout; zero means no bound.
func (c EngineConfig) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.TimeoutSeconds == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout())
}

//writeOptional writes values as a column when fileName is set.
func writeOptional(fileName string, values []float64) error {
	if fileName == "" || values == nil {
		return nil
	}
	return writeNpy(fileName, column(values))
}

//writeUncertainty stores the observational and mean uncertainties of result.
func writeUncertainty(ctx context.Context, result *bfl.EnsembleResult, obsFileName, meanFileName string) error {
	if obsFileName != "" {
		obs, err := result.StdDevObs()
		if err != nil {
			return err
		}
		if err := writeOptional(obsFileName, obs); err != nil {
			return err
		}
	}
	if meanFileName != "" {
		mean, err := result.StdDevMean(ctx)
		if err != nil {
			return err
		}
		if err := writeOptional(meanFileName, mean); err != nil {
			return err
		}
	}
	return nil
}

func predict(ctx context.Context, srcConfig string) error {
	var predictConfig PredictConfig
	if err := decodeConfig(srcConfig, &predictConfig); err != nil {
		return err
	}
	ctx, cancel := predictConfig.Engine.withTimeout(ctx)
	defer cancel()

	features, err := readNpy(predictConfig.FeaturesFileName)
	if err != nil {
		return err
	}
	forest, err := LoadModel(predictConfig.ModelFileName, predictConfig.Engine.options()...)
	if err != nil {
		return err
	}
	logger.Info("model loaded",
		zap.String("model", predictConfig.ModelFileName),
		zap.Int("trees", len(forest.Trees)),
		zap.Int("features", forest.NumFeatures()))

	result, err := forest.Transform(ctx, rowsOf(features))
	if err != nil {
		return err
	}

	if result.IsClassification() {
		labels := make([]float64, result.Len())
		for p, label := range result.Labels() {
			labels[p] = float64(label)
		}
		if err := writeNpy(predictConfig.PredictionFileName, column(labels)); err != nil {
			return err
		}
		if predictConfig.ProbabilitiesFileName != "" {
			probabilities, err := result.Probabilities(predictConfig.NumClasses)
			if err != nil {
				return err
			}
			if err := writeNpy(predictConfig.ProbabilitiesFileName, probabilities); err != nil {
				return err
			}
		}
		logger.Info("classified", zap.Int("rows", result.Len()))
		return nil
	}

	if err := writeNpy(predictConfig.PredictionFileName, column(result.Expected())); err != nil {
		return err
	}
	if err := writeUncertainty(ctx, result, predictConfig.StdDevObsFileName, predictConfig.StdDevMeanFileName); err != nil {
		return err
	}
	logger.Info("predicted", zap.Int("rows", result.Len()))
	return nil
}

func uncertainty(ctx context.Context, srcConfig string) error {
	var uncertaintyConfig UncertaintyConfig
	if err := decodeConfig(srcConfig, &uncertaintyConfig); err != nil {
		return err
	}
	ctx, cancel := uncertaintyConfig.Engine.withTimeout(ctx)
	defer cancel()

	treePredictions, err := readNpy(uncertaintyConfig.PredictionsFileName)
	if err != nil {
		return err
	}
	members := rowsOf(treePredictions)
	predictions := make([]bfl.ModelPrediction, len(members))
	for j, row := range members {
		predictions[j] = bfl.ModelPrediction{Expected: row}
	}

	var nib [][]int
	if uncertaintyConfig.NibFileName != "" {
		nibMatrix, err := readNpy(uncertaintyConfig.NibFileName)
		if err != nil {
			return err
		}
		if nib, err = countsOf(nibMatrix); err != nil {
			return fmt.Errorf("%s: %w", uncertaintyConfig.NibFileName, err)
		}
	}

	result, err := bfl.Aggregate(predictions, nib, uncertaintyConfig.Engine.options()...)
	if err != nil {
		return err
	}
	logger.Info("aggregated",
		zap.Int("members", len(predictions)),
		zap.Int("rows", result.Len()),
		zap.Bool("batched", uncertaintyConfig.Engine.Batched))

	if err := writeUncertainty(ctx, result, uncertaintyConfig.StdDevObsFileName, uncertaintyConfig.StdDevMeanFileName); err != nil {
		return err
	}

	if uncertaintyConfig.ImportanceFileName != "" {
		importance, err := result.ImportanceScores(ctx)
		if err != nil {
			return err
		}
		if importance == nil {
			logger.Warn("importance scores unavailable without bootstrap and jackknife")
		} else if err := writeNpy(uncertaintyConfig.ImportanceFileName, importance); err != nil {
			return err
		}
	}

	if uncertaintyConfig.TruthFileName != "" {
		truthMatrix, err := readNpy(uncertaintyConfig.TruthFileName)
		if err != nil {
			return err
		}
		influence, err := result.InfluenceScores(ctx, mat.Col(nil, 0, truthMatrix))
		if err != nil {
			return err
		}
		if influence == nil {
			logger.Warn("influence scores unavailable without bootstrap and jackknife")
		} else if err := writeNpy(uncertaintyConfig.InfluenceFileName, influence); err != nil {
			return err
		}
	}
	return nil
}

func shapley(ctx context.Context, srcConfig string) error {
	var shapleyConfig ShapleyConfig
	if err := decodeConfig(srcConfig, &shapleyConfig); err != nil {
		return err
	}
	ctx, cancel := shapleyConfig.Engine.withTimeout(ctx)
	defer cancel()

	features, err := readNpy(shapleyConfig.FeaturesFileName)
	if err != nil {
		return err
	}
	forest, err := LoadModel(shapleyConfig.ModelFileName, shapleyConfig.Engine.options()...)
	if err != nil {
		return err
	}

	phi, err := forest.Shapley(ctx, rowsOf(features), shapleyConfig.OmitFeatures...)
	if err != nil {
		return err
	}
	shape := phi.Shape()
	backing, ok := phi.Data().([]float64)
	if !ok {
		return fmt.Errorf("unexpected attribution tensor type %T", phi.Data())
	}
	// One row per input, features major and outputs minor within the row.
	attribution := mat.NewDense(shape[0], shape[1]*shape[2], backing)
	logger.Info("attributed",
		zap.Int("rows", shape[0]),
		zap.Int("features", shape[1]),
		zap.Ints("omitted", shapleyConfig.OmitFeatures))
	return writeNpy(shapleyConfig.AttributionFileName, attribution)
}

func graph(srcConfig string) error {
	var graphConfig GraphConfig
	if err := decodeConfig(srcConfig, &graphConfig); err != nil {
		return err
	}

	forest, err := LoadModel(graphConfig.ModelFileName)
	if err != nil {
		return err
	}
	return forest.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory)
}
