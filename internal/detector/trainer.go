package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const executableName = "yolo"

// MetricsInterface defines metrics methods needed by the trainer
type MetricsInterface interface {
	DetectorRunsInc()
	DetectorFailuresInc()
	DetectorDurationObserve(float64)
}

// Config holds the trainer invocation parameters.
type Config struct {
	Bin         string // explicit executable, empty to search
	Manifest    string
	Model       string
	Epochs      int
	Batch       int
	ImageSize   int
	Patience    int
	Optimizer   string
	DatasetsDir string
	Project     string
}

// Result describes a finished training run.
type Result struct {
	SaveDir     string
	BestWeights string
	Duration    time.Duration
}

// Trainer runs detector fine-tuning through the external yolo executable.
type Trainer struct {
	cfg     Config
	bin     string
	metrics MetricsInterface
}

// NewTrainer locates the executable. metrics may be nil.
func NewTrainer(cfg Config, metrics MetricsInterface) (*Trainer, error) {
	bin, err := FindExecutable(cfg.Bin)
	if err != nil {
		return nil, err
	}
	return &Trainer{cfg: cfg, bin: bin, metrics: metrics}, nil
}

// Bin returns the resolved executable path.
func (t *Trainer) Bin() string { return t.bin }

// SettingsArgs points the trainer's persistent settings at the datasets
// directory.
func (t *Trainer) SettingsArgs() ([]string, error) {
	dir, err := filepath.Abs(t.cfg.DatasetsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve datasets dir: %w", err)
	}
	return []string{"settings", "datasets_dir=" + dir}, nil
}

// Args renders the training command line.
func (t *Trainer) Args() []string {
	args := []string{
		"detect", "train",
		"data=" + t.cfg.Manifest,
		"model=" + t.cfg.Model,
		"epochs=" + strconv.Itoa(t.cfg.Epochs),
		"batch=" + strconv.Itoa(t.cfg.Batch),
		"imgsz=" + strconv.Itoa(t.cfg.ImageSize),
		"patience=" + strconv.Itoa(t.cfg.Patience),
		"optimizer=" + t.cfg.Optimizer,
	}
	if t.cfg.Project != "" {
		args = append(args, "project="+t.cfg.Project)
	}
	return args
}

// Run applies the datasets setting and then trains. Cancelling ctx kills
// the child process.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	if t.metrics != nil {
		t.metrics.DetectorRunsInc()
	}
	res, err := t.run(ctx)
	res.Duration = time.Since(start)
	if t.metrics != nil {
		t.metrics.DetectorDurationObserve(res.Duration.Seconds())
		if err != nil {
			t.metrics.DetectorFailuresInc()
		}
	}
	return res, err
}

func (t *Trainer) run(ctx context.Context) (Result, error) {
	settings, err := t.SettingsArgs()
	if err != nil {
		return Result{}, err
	}
	if _, err := t.exec(ctx, "settings", settings); err != nil {
		return Result{}, fmt.Errorf("failed to apply trainer settings: %w", err)
	}

	log.Info().
		Str("bin", t.bin).
		Str("data", t.cfg.Manifest).
		Str("model", t.cfg.Model).
		Int("epochs", t.cfg.Epochs).
		Int("batch", t.cfg.Batch).
		Int("imgsz", t.cfg.ImageSize).
		Int("patience", t.cfg.Patience).
		Str("optimizer", t.cfg.Optimizer).
		Msg("Starting detector training")

	saveDir, err := t.exec(ctx, "train", t.Args())
	if err != nil {
		return Result{}, fmt.Errorf("detector training failed: %w", err)
	}

	res := Result{SaveDir: saveDir}
	if saveDir == "" {
		log.Warn().Msg("Trainer did not report a results directory")
		return res, nil
	}
	res.BestWeights = filepath.Join(saveDir, "weights", "best.pt")
	if _, err := os.Stat(res.BestWeights); err != nil {
		log.Warn().Err(err).Str("path", res.BestWeights).Msg("Best weights not found")
	}
	return res, nil
}

// exec runs the executable, logging each output line, and returns the
// results directory if the output announced one.
func (t *Trainer) exec(ctx context.Context, stage string, args []string) (string, error) {
	logger := log.With().Str("stage", stage).Logger()
	out := &lineLogger{logger: logger}

	cmd := exec.CommandContext(ctx, t.bin, args...)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	cmd.Stdout = out.level(zerolog.InfoLevel)
	// the trainer writes its progress bars to stderr
	cmd.Stderr = out.level(zerolog.DebugLevel)
	// grandchildren may hold the pipes open after a cancel
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	out.flush()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out.saveDir, fmt.Errorf("%s interrupted: %w", stage, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error().Int("exit_code", exitErr.ExitCode()).Strs("output_tail", out.tail).Msg("Trainer exited with error")
		}
		return out.saveDir, err
	}
	return out.saveDir, nil
}

// FindExecutable locates the yolo executable: an explicit path or name,
// the active virtual environment, a venv next to the working directory or
// the binary, then PATH.
func FindExecutable(explicit string) (string, error) {
	if explicit != "" {
		if strings.ContainsRune(explicit, os.PathSeparator) {
			if _, err := os.Stat(explicit); err != nil {
				return "", fmt.Errorf("configured trainer executable: %w", err)
			}
			return explicit, nil
		}
		path, err := exec.LookPath(explicit)
		if err != nil {
			return "", fmt.Errorf("configured trainer executable: %w", err)
		}
		return path, nil
	}

	var candidates []string
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append(candidates, venvCandidates(venv)...)
	}
	var roots []string
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		roots = append(roots, execDir, filepath.Dir(execDir))
	}
	for _, root := range roots {
		candidates = append(candidates,
			venvCandidates(filepath.Join(root, "venv"))...)
		candidates = append(candidates,
			venvCandidates(filepath.Join(root, ".venv"))...)
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			log.Debug().Str("path", c).Msg("Using virtual environment trainer")
			return c, nil
		}
	}

	path, err := exec.LookPath(executableName)
	if err != nil {
		return "", fmt.Errorf("%s executable not found in virtual environments or PATH: %w", executableName, err)
	}
	return path, nil
}

func venvCandidates(venv string) []string {
	return []string{
		filepath.Join(venv, "bin", executableName),
		filepath.Join(venv, "Scripts", executableName+".exe"),
	}
}

var (
	ansiPattern    = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	savedToPattern = regexp.MustCompile(`Results saved to (.+?)\s*$`)
)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func parseSaveDir(line string) (string, bool) {
	m := savedToPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

const (
	tailLines = 20
	waitDelay = 5 * time.Second
)

// lineLogger turns child output into log lines. Carriage returns count as
// line breaks so progress bar redraws come out as separate lines. It also
// remembers the last lines for error reports and the announced results
// directory.
type lineLogger struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	tail    []string
	saveDir string
	pending map[zerolog.Level]*bytes.Buffer
}

type levelWriter struct {
	l     *lineLogger
	level zerolog.Level
}

func (l *lineLogger) level(level zerolog.Level) io.Writer {
	return &levelWriter{l: l, level: level}
}

func (w *levelWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	if w.l.pending == nil {
		w.l.pending = make(map[zerolog.Level]*bytes.Buffer)
	}
	buf, ok := w.l.pending[w.level]
	if !ok {
		buf = &bytes.Buffer{}
		w.l.pending[w.level] = buf
	}
	buf.Write(p)
	for {
		i := bytes.IndexAny(buf.Bytes(), "\r\n")
		if i < 0 {
			break
		}
		line := string(buf.Next(i + 1)[:i])
		w.l.emit(w.level, line)
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for level, buf := range l.pending {
		if buf.Len() > 0 {
			l.emit(level, buf.String())
			buf.Reset()
		}
	}
}

func (l *lineLogger) emit(level zerolog.Level, raw string) {
	line := stripANSI(raw)
	if strings.TrimSpace(line) == "" {
		return
	}
	l.logger.WithLevel(level).Msg(line)
	if len(l.tail) == tailLines {
		l.tail = l.tail[1:]
	}
	l.tail = append(l.tail, line)
	if dir, ok := parseSaveDir(line); ok {
		l.saveDir = dir
	}
}
