package config

import "runtime"

const (
	defaultHashThreshold     = 12
	defaultMinRatio          = 0.10
	defaultHashAlgorithm     = "dct"
	defaultDescriptorBackend = "go"
	defaultMaxFeatures       = 1500
	defaultQuarantineDir     = "_IMF_trash"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	minDefaultWorkerCount    = 4

	// MaxWorkers bounds the worker pool.
	MaxWorkers = 64
)

// DefaultExtensions is the allow-list of image file extensions, without dots.
var DefaultExtensions = []string{"jpg", "jpeg", "png", "bmp", "webp", "tiff", "tif"}

// DefaultWorkers returns max(4, host parallelism).
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < minDefaultWorkerCount {
		n = minDefaultWorkerCount
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	exts := make([]string, len(DefaultExtensions))
	copy(exts, DefaultExtensions)
	return Config{
		Scan: Scan{
			HashThreshold:     defaultHashThreshold,
			MinRatio:          defaultMinRatio,
			Workers:           DefaultWorkers(),
			HashAlgorithm:     defaultHashAlgorithm,
			DescriptorBackend: defaultDescriptorBackend,
			MaxFeatures:       defaultMaxFeatures,
			Extensions:        exts,
		},
		Quarantine: Quarantine{
			DirName: defaultQuarantineDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
