// Package config loads the pipeline configuration from defaults, an
// optional YAML file and HEARTRISK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g.
// HEARTRISK_HARNESS_CV_PARTITION=train.
const EnvPrefix = "HEARTRISK"

// Config is the full pipeline configuration.
type Config struct {
	Dataset         string `mapstructure:"dataset" yaml:"dataset" validate:"required"`
	Sheet           string `mapstructure:"sheet" yaml:"sheet,omitempty"`
	ChartsDir       string `mapstructure:"charts_dir" yaml:"charts_dir,omitempty"`
	Report          string `mapstructure:"report" yaml:"report,omitempty"`
	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile,omitempty"`
	LogLevel        string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=json text"`

	Cleaning Cleaning `mapstructure:"cleaning" yaml:"cleaning"`
	Features Features `mapstructure:"features" yaml:"features"`
	Harness  Harness  `mapstructure:"harness" yaml:"harness"`
}

// Cleaning configures the normalizer stages.
type Cleaning struct {
	ThallFill     float64  `mapstructure:"thall_fill" yaml:"thall_fill" validate:"min=1,max=3"`
	DropColumns   []string `mapstructure:"drop_columns" yaml:"drop_columns"`
	TrtbpsCutoff  float64  `mapstructure:"trtbps_cutoff" yaml:"trtbps_cutoff" validate:"gt=0"`
	OldpeakCutoff float64  `mapstructure:"oldpeak_cutoff" yaml:"oldpeak_cutoff" validate:"gt=0"`
	Fence         string   `mapstructure:"fence" yaml:"fence" validate:"oneof=additive multiplicative"`
	FenceK        float64  `mapstructure:"fence_k" yaml:"fence_k" validate:"gte=0"`
}

// Features configures the encoder.
type Features struct {
	Scaler string `mapstructure:"scaler" yaml:"scaler" validate:"oneof=robust standard minmax"`
}

// Harness configures the split and the model comparison.
type Harness struct {
	TestSize    float64 `mapstructure:"test_size" yaml:"test_size" validate:"gt=0,lt=1"`
	SplitSeed   uint64  `mapstructure:"split_seed" yaml:"split_seed"`
	ModelSeed   uint64  `mapstructure:"model_seed" yaml:"model_seed"`
	CVFolds     int     `mapstructure:"cv_folds" yaml:"cv_folds" validate:"min=2"`
	CVPartition string  `mapstructure:"cv_partition" yaml:"cv_partition" validate:"oneof=test train"`
	NJobs       int     `mapstructure:"n_jobs" yaml:"n_jobs" validate:"min=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataset", "heart.csv")
	v.SetDefault("sheet", "")
	v.SetDefault("charts_dir", "")
	v.SetDefault("report", "")
	v.SetDefault("metrics_textfile", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("cleaning.thall_fill", 2.0)
	v.SetDefault("cleaning.drop_columns", []string{"chol", "fbs", "restecg"})
	v.SetDefault("cleaning.trtbps_cutoff", 165.0)
	v.SetDefault("cleaning.oldpeak_cutoff", 4.0)
	v.SetDefault("cleaning.fence", "additive")
	v.SetDefault("cleaning.fence_k", 1.5)

	v.SetDefault("features.scaler", "robust")

	v.SetDefault("harness.test_size", 0.2)
	v.SetDefault("harness.split_seed", 3)
	v.SetDefault("harness.model_seed", 5)
	v.SetDefault("harness.cv_folds", 10)
	v.SetDefault("harness.cv_partition", "test")
	v.SetDefault("harness.n_jobs", 0)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	c, err := decode(v)
	if err != nil {
		// defaults are valid by construction
		panic(err)
	}
	return c
}

// Load reads configuration. Precedence: env > config file > defaults;
// command-line flags are applied on top by the caller. An empty path looks
// for an optional heartrisk.yaml in the working directory; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("heartrisk")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config heartrisk.yaml")
			}
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every field against its allowed range. The first
// violation is returned as a ValidationError named by its YAML key path.
func (c *Config) Validate() error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		return errors.NewValidationError(key, fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param()), fe.Value())
	}
	return errors.Wrap(err, "validate config")
}

func configValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})
	return v
}

// Save writes c to path as YAML, creating the directory if necessary.
func Save(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create config directory for %s", path)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}
