package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"cash-reader/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	// explorer
	DatasetPath  string
	FilteredPath string
	CountsPath   string
	Currency     string
	HeadRows     int

	// classifier
	ModelPath       string
	PlotDir         string
	HiddenUnits     int
	Dropout         float64
	Epochs          int
	BatchSize       int
	TestSize        float64
	ValidationSplit float64
	LearningRate    float64
	RandSeed        int64

	// detector
	ManifestPath    string
	YOLOBin         string
	DetectorModel   string
	DetectorEpochs  int
	DetectorBatch   int
	ImageSize       int
	Patience        int
	Optimizer       string
	DatasetsDir     string
	DetectorProject string

	// system
	LogLevel    string
	MetricsFile string
}

type ConfigFile struct {
	Explore struct {
		DatasetPath  string `yaml:"datasetPath"`
		FilteredPath string `yaml:"filteredPath"`
		CountsPath   string `yaml:"countsPath"`
		Currency     string `yaml:"currency"`
		HeadRows     int    `yaml:"headRows"`
	} `yaml:"explore"`

	Classifier struct {
		DatasetPath     string   `yaml:"datasetPath"`
		ModelPath       string   `yaml:"modelPath"`
		PlotDir         string   `yaml:"plotDir"`
		HiddenUnits     int      `yaml:"hiddenUnits"`
		Dropout         *float64 `yaml:"dropout"`
		Epochs          int      `yaml:"epochs"`
		BatchSize       int      `yaml:"batchSize"`
		TestSize        float64  `yaml:"testSize"`
		ValidationSplit *float64 `yaml:"validationSplit"`
		LearningRate    float64  `yaml:"learningRate"`
		RandSeed        *int64   `yaml:"randSeed"`
	} `yaml:"classifier"`

	Detector struct {
		ManifestPath string `yaml:"manifestPath"`
		Bin          string `yaml:"bin"`
		Model        string `yaml:"model"`
		Epochs       int    `yaml:"epochs"`
		Batch        int    `yaml:"batch"`
		ImageSize    int    `yaml:"imageSize"`
		Patience     *int   `yaml:"patience"`
		Optimizer    string `yaml:"optimizer"`
		DatasetsDir  string `yaml:"datasetsDir"`
		Project      string `yaml:"project"`
	} `yaml:"detector"`

	System struct {
		LogLevel    string `yaml:"logLevel"`
		MetricsFile string `yaml:"metricsFile"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, falling back
// to environment variables. A .env file in the working directory is applied
// to the environment first.
func Load() (Settings, error) {
	loadDotEnv(".env")

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// LoadFile is Load with an explicit config path. An empty path behaves like Load.
func LoadFile(path string) (Settings, error) {
	if path == "" {
		return Load()
	}
	loadDotEnv(".env")
	return loadFromYAML(path)
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("failed to load env file")
		}
	}
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// The classifier reads the explorer's dataset unless it names its own.
	datasetPath := stringFromEnvOrConfig(common.EnvDatasetPath, config.Explore.DatasetPath, common.DefaultDatasetPath)
	if config.Classifier.DatasetPath != "" && os.Getenv(common.EnvDatasetPath) == "" {
		datasetPath = config.Classifier.DatasetPath
	}

	settings := Settings{
		DatasetPath:  datasetPath,
		FilteredPath: stringFromEnvOrConfig(common.EnvFilteredPath, config.Explore.FilteredPath, common.DefaultFilteredPath),
		CountsPath:   stringFromEnvOrConfig(common.EnvCountsPath, config.Explore.CountsPath, ""),
		Currency:     stringFromEnvOrConfig(common.EnvCurrency, config.Explore.Currency, common.DefaultCurrency),
		HeadRows:     intFromConfig(config.Explore.HeadRows, common.DefaultHeadRows),

		ModelPath:       stringFromEnvOrConfig(common.EnvModelPath, config.Classifier.ModelPath, common.DefaultModelPath),
		PlotDir:         stringFromEnvOrConfig(common.EnvPlotDir, config.Classifier.PlotDir, common.DefaultPlotDir),
		HiddenUnits:     intFromConfig(config.Classifier.HiddenUnits, common.DefaultHiddenUnits),
		Dropout:         optionalFloat(config.Classifier.Dropout, common.DefaultDropout),
		Epochs:          intFromEnvOrConfig(common.EnvEpochs, config.Classifier.Epochs, common.DefaultEpochs),
		BatchSize:       intFromEnvOrConfig(common.EnvBatchSize, config.Classifier.BatchSize, common.DefaultBatchSize),
		TestSize:        floatFromConfig(config.Classifier.TestSize, common.DefaultTestSize),
		ValidationSplit: optionalFloat(config.Classifier.ValidationSplit, common.DefaultValidationSplit),
		LearningRate:    floatFromConfig(config.Classifier.LearningRate, common.DefaultLearningRate),
		RandSeed:        int64FromEnvOrConfig(common.EnvRandSeed, config.Classifier.RandSeed, common.DefaultRandSeed),

		ManifestPath:    stringFromEnvOrConfig(common.EnvManifestPath, config.Detector.ManifestPath, common.DefaultManifestPath),
		YOLOBin:         stringFromEnvOrConfig(common.EnvYOLOBin, config.Detector.Bin, ""),
		DetectorModel:   stringFromEnvOrConfig(common.EnvDetectorModel, config.Detector.Model, common.DefaultDetectorModel),
		DetectorEpochs:  intFromEnvOrConfig(common.EnvDetectorEpochs, config.Detector.Epochs, common.DefaultDetEpochs),
		DetectorBatch:   intFromConfig(config.Detector.Batch, common.DefaultDetBatch),
		ImageSize:       intFromConfig(config.Detector.ImageSize, common.DefaultImageSize),
		Patience:        optionalInt(config.Detector.Patience, common.DefaultPatience),
		Optimizer:       stringFromEnvOrConfig("", config.Detector.Optimizer, common.DefaultOptimizer),
		DatasetsDir:     stringFromEnvOrConfig(common.EnvDatasetsDir, config.Detector.DatasetsDir, common.DefaultDatasetsDir),
		DetectorProject: stringFromEnvOrConfig(common.EnvDetectorProject, config.Detector.Project, ""),

		LogLevel:    stringFromEnvOrConfig(common.EnvLogLevel, config.System.LogLevel, "info"),
		MetricsFile: stringFromEnvOrConfig(common.EnvMetrics, config.System.MetricsFile, ""),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Defaults()

	settings.DatasetPath = getEnvOrDefault(common.EnvDatasetPath, settings.DatasetPath)
	settings.FilteredPath = getEnvOrDefault(common.EnvFilteredPath, settings.FilteredPath)
	settings.CountsPath = os.Getenv(common.EnvCountsPath) // optional
	settings.Currency = getEnvOrDefault(common.EnvCurrency, settings.Currency)
	settings.ModelPath = getEnvOrDefault(common.EnvModelPath, settings.ModelPath)
	settings.PlotDir = getEnvOrDefault(common.EnvPlotDir, settings.PlotDir)
	settings.Epochs = getIntOrDefault(common.EnvEpochs, settings.Epochs)
	settings.BatchSize = getIntOrDefault(common.EnvBatchSize, settings.BatchSize)
	settings.RandSeed = int64(getIntOrDefault(common.EnvRandSeed, int(settings.RandSeed)))
	settings.ManifestPath = getEnvOrDefault(common.EnvManifestPath, settings.ManifestPath)
	settings.YOLOBin = os.Getenv(common.EnvYOLOBin) // optional
	settings.DetectorModel = getEnvOrDefault(common.EnvDetectorModel, settings.DetectorModel)
	settings.DetectorEpochs = getIntOrDefault(common.EnvDetectorEpochs, settings.DetectorEpochs)
	settings.DatasetsDir = getEnvOrDefault(common.EnvDatasetsDir, settings.DatasetsDir)
	settings.DetectorProject = os.Getenv(common.EnvDetectorProject)
	settings.LogLevel = getEnvOrDefault(common.EnvLogLevel, settings.LogLevel)
	settings.MetricsFile = os.Getenv(common.EnvMetrics)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Defaults returns the stock training settings.
func Defaults() Settings {
	return Settings{
		DatasetPath:  common.DefaultDatasetPath,
		FilteredPath: common.DefaultFilteredPath,
		Currency:     common.DefaultCurrency,
		HeadRows:     common.DefaultHeadRows,

		ModelPath:       common.DefaultModelPath,
		PlotDir:         common.DefaultPlotDir,
		HiddenUnits:     common.DefaultHiddenUnits,
		Dropout:         common.DefaultDropout,
		Epochs:          common.DefaultEpochs,
		BatchSize:       common.DefaultBatchSize,
		TestSize:        common.DefaultTestSize,
		ValidationSplit: common.DefaultValidationSplit,
		LearningRate:    common.DefaultLearningRate,
		RandSeed:        common.DefaultRandSeed,

		ManifestPath:   common.DefaultManifestPath,
		DetectorModel:  common.DefaultDetectorModel,
		DetectorEpochs: common.DefaultDetEpochs,
		DetectorBatch:  common.DefaultDetBatch,
		ImageSize:      common.DefaultImageSize,
		Patience:       common.DefaultPatience,
		Optimizer:      common.DefaultOptimizer,
		DatasetsDir:    common.DefaultDatasetsDir,

		LogLevel: "info",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func stringFromEnvOrConfig(key, configValue, defaultValue string) string {
	if key != "" {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}

func intFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return intFromConfig(configValue, defaultValue)
}

func int64FromEnvOrConfig(key string, configValue *int64, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

func intFromConfig(configValue, defaultValue int) int {
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func floatFromConfig(configValue, defaultValue float64) float64 {
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// optionalInt keeps an explicit zero from the config file.
func optionalInt(configValue *int, defaultValue int) int {
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

// optionalFloat keeps an explicit zero from the config file.
func optionalFloat(configValue *float64, defaultValue float64) float64 {
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

// Validate re-checks settings after command-line overrides.
func (s *Settings) Validate() error {
	if err := validateSettings(s); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// validateSettings checks value ranges for every tool's settings
func validateSettings(settings *Settings) error {
	// Paths
	if settings.DatasetPath == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if settings.FilteredPath == "" {
		return fmt.Errorf("filtered dataset path cannot be empty")
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.ManifestPath == "" {
		return fmt.Errorf("dataset manifest path cannot be empty")
	}
	if settings.Currency == "" {
		return fmt.Errorf("currency code cannot be empty")
	}

	// Classifier
	if settings.HiddenUnits <= 0 {
		return fmt.Errorf("hidden units must be positive, got %d", settings.HiddenUnits)
	}
	if settings.Dropout < 0 || settings.Dropout > common.MaxDropout {
		return fmt.Errorf("dropout must be between 0 and %.1f, got %f", common.MaxDropout, settings.Dropout)
	}
	if settings.Epochs <= 0 || settings.Epochs > common.MaxEpochs {
		return fmt.Errorf("epochs must be between 1 and %d, got %d", common.MaxEpochs, settings.Epochs)
	}
	if settings.BatchSize <= 0 || settings.BatchSize > common.MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", common.MaxBatchSize, settings.BatchSize)
	}
	if settings.TestSize <= 0 || settings.TestSize > common.MaxSplitFrac {
		return fmt.Errorf("test size must be between 0 and %.1f, got %f", common.MaxSplitFrac, settings.TestSize)
	}
	if settings.ValidationSplit < 0 || settings.ValidationSplit > common.MaxSplitFrac {
		return fmt.Errorf("validation split must be between 0 and %.1f, got %f", common.MaxSplitFrac, settings.ValidationSplit)
	}
	if settings.LearningRate <= 0 || settings.LearningRate > common.MaxLearningRate {
		return fmt.Errorf("learning rate must be between 0 and %.1f, got %f", common.MaxLearningRate, settings.LearningRate)
	}

	// Detector
	if settings.DetectorEpochs <= 0 || settings.DetectorEpochs > common.MaxEpochs {
		return fmt.Errorf("detector epochs must be between 1 and %d, got %d", common.MaxEpochs, settings.DetectorEpochs)
	}
	if settings.DetectorBatch <= 0 || settings.DetectorBatch > common.MaxBatchSize {
		return fmt.Errorf("detector batch must be between 1 and %d, got %d", common.MaxBatchSize, settings.DetectorBatch)
	}
	if settings.ImageSize < common.MinImageSize || settings.ImageSize > common.MaxImageSize || settings.ImageSize%32 != 0 {
		return fmt.Errorf("image size must be a multiple of 32 between %d and %d, got %d", common.MinImageSize, common.MaxImageSize, settings.ImageSize)
	}
	if settings.Patience < 0 {
		return fmt.Errorf("patience cannot be negative, got %d", settings.Patience)
	}
	if !slices.Contains(common.DetectorOptimizers, settings.Optimizer) {
		return fmt.Errorf("unsupported detector optimizer %q", settings.Optimizer)
	}

	return nil
}
