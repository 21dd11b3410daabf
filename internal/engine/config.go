package engine

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/dreamware/cyq/internal/storage"
	"github.com/dreamware/cyq/internal/types"
)

// Config sizes a Database. Assembled by functional options; zero fields
// fall back to the defaults below.
type Config struct {
	WorkerCount   int
	NodeGroupSize int
	CacheSize     int
	MaxWarnings   int
	Logger        *zap.Logger
	FS            storage.FileSystem
}

// Option mutates a Config.
type Option func(*Config)

// WithWorkerCount sets the pipeline worker pool size.
func WithWorkerCount(n int) Option { return func(c *Config) { c.WorkerCount = n } }

// WithNodeGroupSize overrides the node group row capacity.
func WithNodeGroupSize(n int) Option { return func(c *Config) { c.NodeGroupSize = n } }

// WithCacheSize bounds the storage layer's node-group read cache.
func WithCacheSize(n int) Option { return func(c *Config) { c.CacheSize = n } }

// WithMaxWarnings bounds a connection's retained CSV warnings.
func WithMaxWarnings(n int) Option { return func(c *Config) { c.MaxWarnings = n } }

// WithLogger installs a structured logger; the default discards.
func WithLogger(l *zap.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithFileSystem substitutes the file-system abstraction.
func WithFileSystem(fs storage.FileSystem) Option { return func(c *Config) { c.FS = fs } }

func defaultConfig() Config {
	return Config{
		WorkerCount:   runtime.NumCPU(),
		NodeGroupSize: types.NodeGroupSize,
		CacheSize:     64,
		MaxWarnings:   100,
		Logger:        zap.NewNop(),
		FS:            storage.OSFileSystem{},
	}
}
