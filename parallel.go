package jointab

import (
	"runtime"
	"sync"
)

// ============================================================================
// Parallel Execution Configuration
// ============================================================================

// ParallelConfig controls parallelization behavior
type ParallelConfig struct {
	// MinRowsForParallel is the minimum output rows to justify parallel overhead
	MinRowsForParallel int

	// MaxWorkers limits the number of worker goroutines (0 = GOMAXPROCS)
	MaxWorkers int

	// Enabled controls whether parallelism is used at all
	Enabled bool
}

// DefaultParallelConfig returns sensible defaults
func DefaultParallelConfig() *ParallelConfig {
	return &ParallelConfig{
		MinRowsForParallel: 8192,
		MaxWorkers:         0,
		Enabled:            true,
	}
}

var (
	globalConfig   = DefaultParallelConfig()
	globalConfigMu sync.RWMutex
)

// SetParallelConfig sets the global parallelization configuration
func SetParallelConfig(cfg *ParallelConfig) {
	if cfg == nil {
		return
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	c := *cfg
	globalConfig = &c
}

// GetParallelConfig returns a copy of the current configuration
func GetParallelConfig() *ParallelConfig {
	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	c := *globalConfig
	return &c
}

// numWorkers returns the number of workers to use
func (cfg *ParallelConfig) numWorkers() int {
	if cfg.MaxWorkers > 0 {
		return cfg.MaxWorkers
	}
	return runtime.GOMAXPROCS(0)
}

// shouldParallelize determines if an operation should be parallelized
func (cfg *ParallelConfig) shouldParallelize(rows int) bool {
	return cfg.Enabled && rows >= cfg.MinRowsForParallel
}
