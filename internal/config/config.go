package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Scan contains the knobs of a similarity scan session.
type Scan struct {
	// HashThreshold is the maximum fingerprint Hamming distance a candidate
	// may have to survive the prune stage.
	HashThreshold int `toml:"hash_threshold" validate:"gte=0,lte=64"`
	// MinRatio is advisory: results below it are flagged, never dropped.
	MinRatio float64 `toml:"min_ratio" validate:"gte=0,lte=1"`
	// Workers is the worker pool size. Zero in a file selects the default.
	Workers           int      `toml:"workers" validate:"gte=1,lte=64"`
	HashAlgorithm     string   `toml:"hash_algorithm" validate:"oneof=dct goimagehash"`
	DescriptorBackend string   `toml:"descriptor_backend" validate:"oneof=go opencv"`
	MaxFeatures       int      `toml:"max_features" validate:"gte=1,lte=10000"`
	Extensions        []string `toml:"extensions" validate:"min=1,dive,required"`
	FollowSymlinks    bool     `toml:"follow_symlinks"`
	// PartialOnCancel returns the results gathered so far when a scan is
	// cancelled instead of discarding them.
	PartialOnCancel bool `toml:"partial_on_cancel"`
}

// Quarantine contains configuration for bulk relocation of matches.
type Quarantine struct {
	// DirName is the holding directory created under the scan root.
	DirName string `toml:"dir_name" validate:"required,excludesall=/\\"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
}

// Config encapsulates all configuration values for imgmatch.
type Config struct {
	Scan       Scan       `toml:"scan"`
	Quarantine Quarantine `toml:"quarantine"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/imgmatch/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: the defaults are returned and exists is false.
func Load(path string) (cfg *Config, resolvedPath string, exists bool, err error) {
	c := Default()

	resolvedPath, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&c); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}
	return &c, resolvedPath, exists, nil
}

// Normalize fills zero values with defaults and canonicalizes string fields.
func (c *Config) Normalize() {
	if c.Scan.Workers == 0 {
		c.Scan.Workers = DefaultWorkers()
	}
	if c.Scan.MaxFeatures == 0 {
		c.Scan.MaxFeatures = defaultMaxFeatures
	}
	c.Scan.HashAlgorithm = strings.ToLower(strings.TrimSpace(c.Scan.HashAlgorithm))
	if c.Scan.HashAlgorithm == "" {
		c.Scan.HashAlgorithm = defaultHashAlgorithm
	}
	c.Scan.DescriptorBackend = strings.ToLower(strings.TrimSpace(c.Scan.DescriptorBackend))
	if c.Scan.DescriptorBackend == "" {
		c.Scan.DescriptorBackend = defaultDescriptorBackend
	}
	c.Scan.Extensions = normalizeExtensions(c.Scan.Extensions)

	c.Quarantine.DirName = strings.TrimSpace(c.Quarantine.DirName)
	if c.Quarantine.DirName == "" {
		c.Quarantine.DirName = defaultQuarantineDir
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExtensions(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, ext := range in {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("imgmatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// It refuses to overwrite an existing file.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}

// Encode renders the effective configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
