// Package logging provides config-driven categorized logging for unmerge.
// Every category is a named child of one zap logger stamped with the run id,
// so a single run can be followed across the archive, class file, decision
// and source layers.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"unmerge/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryArchive   Category = "archive"   // Entry batching, manifest, output
	CategoryClassfile Category = "classfile" // Class scanning and rewriting
	CategoryDecision  Category = "decision"  // Per-element removal verdicts
	CategorySource    Category = "source"    // Java source stripping
)

// Categories lists every category.
var Categories = []Category{CategoryArchive, CategoryClassfile, CategoryDecision, CategorySource}

var (
	mu       sync.RWMutex
	base     = zap.NewNop()
	disabled = map[Category]bool{}
)

// New builds the root logger described by cfg. JSON format uses zap's
// production encoder, text uses the development console encoder. The logger
// carries a fresh run_id field.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch cfg.Format {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "text":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("run_id", uuid.NewString())), nil
}

// Initialize installs logger as the parent of every category and applies the
// per-category toggles from cfg.
func Initialize(logger *zap.Logger, cfg config.LoggingConfig) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	base = logger
	disabled = make(map[Category]bool)
	for _, c := range Categories {
		if !cfg.IsCategoryEnabled(string(c)) {
			disabled[c] = true
		}
	}
}

// Reset restores the no-op default.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	base = zap.NewNop()
	disabled = map[Category]bool{}
}

// Get returns the logger for a category. Disabled categories and an
// uninitialized package yield a no-op logger.
func Get(category Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if disabled[category] {
		return zap.NewNop()
	}
	return base.Named(string(category))
}

// IsCategoryEnabled reports whether a category emits anything.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return !disabled[category]
}

// Sync flushes the root logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}
