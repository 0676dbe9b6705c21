package common

// Environment variable keys
const (
	EnvConfigFile = "CONFIG_FILE"
	EnvLogLevel   = "LOG_LEVEL"
	EnvMetrics    = "METRICS_FILE"

	EnvDatasetPath     = "DATASET_PATH"
	EnvFilteredPath    = "FILTERED_PATH"
	EnvCountsPath      = "COUNTS_PATH"
	EnvCurrency        = "CURRENCY"
	EnvModelPath       = "MODEL_PATH"
	EnvPlotDir         = "PLOT_DIR"
	EnvEpochs          = "EPOCHS"
	EnvBatchSize       = "BATCH_SIZE"
	EnvRandSeed        = "RAND_SEED"
	EnvManifestPath    = "MANIFEST_PATH"
	EnvYOLOBin         = "YOLO_BIN"
	EnvDetectorModel   = "DETECTOR_MODEL"
	EnvDetectorEpochs  = "DETECTOR_EPOCHS"
	EnvDatasetsDir     = "DATASETS_DIR"
	EnvDetectorProject = "DETECTOR_PROJECT"
)

// Dataset layout
const (
	DenominationColumn = "Denomination"
	CurrencyColumn     = "Currency"
	IndexArtifact      = "Unnamed: 0"
	DenominationSep    = "_"
)

// Explorer defaults
const (
	DefaultDatasetPath  = "backend/src/data/banknote_net.csv"
	DefaultFilteredPath = "backend/src/data/dataset_usd.csv"
	DefaultCurrency     = "USD"
	DefaultHeadRows     = 5
)

// Classifier defaults
const (
	DefaultModelPath       = "backend/src/models/currency_recognition_model.json"
	DefaultPlotDir         = "backend/src/models/plots"
	DefaultHiddenUnits     = 256
	DefaultDropout         = 0.2
	DefaultEpochs          = 40
	DefaultBatchSize       = 256
	DefaultTestSize        = 0.2
	DefaultValidationSplit = 0.2
	DefaultRandSeed        = 42
	DefaultLearningRate    = 0.001
)

// Detector defaults
const (
	DefaultManifestPath  = "backend/Dollar_Bill_Detection_VEF/data.yaml"
	DefaultDetectorModel = "yolov8n.yaml"
	DefaultDetEpochs     = 150
	DefaultDetBatch      = 16
	DefaultImageSize     = 416
	DefaultPatience      = 10
	DefaultOptimizer     = "SGD"
	DefaultDatasetsDir   = "."
)

// Validation constants
const (
	MaxEpochs       = 10000
	MaxBatchSize    = 65536
	MinImageSize    = 32
	MaxImageSize    = 4096
	MaxSplitFrac    = 0.9
	MaxDropout      = 0.9
	MaxLearningRate = 1.0
)

// Optimizers accepted by the detector trainer
var DetectorOptimizers = []string{"SGD", "Adam", "AdamW", "NAdam", "RAdam", "RMSProp", "auto"}
