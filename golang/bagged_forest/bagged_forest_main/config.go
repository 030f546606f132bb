package main

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

//decodeConfig reads a per-mode config file into out and validates it.
func decodeConfig(srcConfig string, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(srcConfig)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", srcConfig, err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("decode config %s: %w", srcConfig, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid config %s: %w", srcConfig, err)
	}
	return nil
}

//EngineConfig holds the aggregation settings shared by the modes that compute uncertainty.
type EngineConfig struct {
	Batched          bool    `mapstructure:"batched"`
	DisableBootstrap bool    `mapstructure:"disable_bootstrap"`
	DisableJackknife bool    `mapstructure:"disable_jackknife"`
	Rescale          float64 `mapstructure:"rescale" validate:"gte=0"`
	ThreadsNum       int     `mapstructure:"threads_num" validate:"gte=0"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	Seed             int64   `mapstructure:"seed"`
}

func (c EngineConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PredictConfig struct {
	Engine                EngineConfig `mapstructure:"engine"`
	ModelFileName         string       `mapstructure:"filename_model" validate:"required"`
	FeaturesFileName      string       `mapstructure:"filename_features" validate:"required"`
	PredictionFileName    string       `mapstructure:"filename_prediction" validate:"required"`
	StdDevObsFileName     string       `mapstructure:"filename_stddev_obs"`
	StdDevMeanFileName    string       `mapstructure:"filename_stddev_mean"`
	ProbabilitiesFileName string       `mapstructure:"filename_probabilities"`
	NumClasses            int          `mapstructure:"num_classes" validate:"required_with=ProbabilitiesFileName,gte=0"`
}

type UncertaintyConfig struct {
	Engine              EngineConfig `mapstructure:"engine"`
	PredictionsFileName string       `mapstructure:"filename_member_predictions" validate:"required"`
	NibFileName         string       `mapstructure:"filename_nib"`
	TruthFileName       string       `mapstructure:"filename_truth"`
	StdDevObsFileName   string       `mapstructure:"filename_stddev_obs"`
	StdDevMeanFileName  string       `mapstructure:"filename_stddev_mean" validate:"required"`
	ImportanceFileName  string       `mapstructure:"filename_importance"`
	InfluenceFileName   string       `mapstructure:"filename_influence" validate:"required_with=TruthFileName"`
}

type ShapleyConfig struct {
	Engine              EngineConfig `mapstructure:"engine"`
	ModelFileName       string       `mapstructure:"filename_model" validate:"required"`
	FeaturesFileName    string       `mapstructure:"filename_features" validate:"required"`
	AttributionFileName string       `mapstructure:"filename_attribution" validate:"required"`
	OmitFeatures        []int        `mapstructure:"omit_features" validate:"dive,gte=0"`
}

type GraphConfig struct {
	ModelFileName     string `mapstructure:"filename_model" validate:"required"`
	FigureType        string `mapstructure:"figure_type" validate:"oneof=png svg jpg"`
	PicturesDirectory string `mapstructure:"pictures_directory" validate:"required"`
	DumpPrefix        string `mapstructure:"dump_prefix" validate:"required"`
}
