// Package config handles deathcounter configuration
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

// DefaultFile is the configuration file written by the terminal UI.
const DefaultFile = "death_counter_config.json"

// Config is the full runtime configuration. JSON keys match the
// configuration file written by earlier releases so old files still load.
type Config struct {
	CaptureZoneWidth    int     `json:"capture_zone_width"`
	CaptureZoneHeight   int     `json:"capture_zone_height"`
	VerboseMode         bool    `json:"verbose_mode"`
	DebugMode           bool    `json:"debug_mode"`
	ScanDelay           float64 `json:"scan_delay"`        // seconds, idle
	ActiveScanDelay     float64 `json:"active_scan_delay"` // seconds, while a death is on screen
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	SelectedScreen      string  `json:"selected_screen"`
	HeartbeatEvery      int     `json:"heartbeat_every"`

	ContrastFactor  float64 `json:"contrast_factor"`
	SharpnessFactor float64 `json:"sharpness_factor"`
	MedianSize      int     `json:"median_size"`

	ScreenWidth  int `json:"screen_width"`
	ScreenHeight int `json:"screen_height"`

	CounterFile    string   `json:"counter_file"`
	JournalPath    string   `json:"journal_path"`
	ArtifactDir    string   `json:"artifact_dir"`
	OCRLanguages   []string `json:"ocr_languages"`
	TessdataPrefix string   `json:"tessdata_prefix"`

	SoundCue          bool `json:"sound_cue"`
	SkipSimilarFrames bool `json:"skip_similar_frames"`
	MaxHashDistance   int  `json:"max_hash_distance"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CaptureZoneWidth:    1500,
		CaptureZoneHeight:   250,
		ScanDelay:           1.0,
		ActiveScanDelay:     0.5,
		ConfidenceThreshold: 0.4,
		SimilarityThreshold: 0.75,
		HeartbeatEvery:      10,
		ContrastFactor:      2.0,
		SharpnessFactor:     1.5,
		MedianSize:          3,
		ScreenWidth:         1920,
		ScreenHeight:        1080,
		CounterFile:         "death_counter.json",
		JournalPath:         "death_history.db",
		ArtifactDir:         ".",
		OCRLanguages:        []string{"eng", "fra"},
		MaxHashDistance:     2,
	}
}

// Load builds the configuration: defaults, then the JSON file at path (if it
// exists), then DEATHCOUNTER_* environment overrides. The result is validated.
// An unreadable file is logged and skipped.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			slog.Warn("ignoring config file", "path", path, "error", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the keys present in the JSON file at path onto c.
// A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigReadFailed, "read config").WithMetadata("path", path)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigReadFailed, "parse config").WithMetadata("path", path)
	}
	return nil
}

// SaveFile writes c as indented JSON to path.
func (c *Config) SaveFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigWriteFailed, "encode config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Wrap(err, apperrors.CodeConfigWriteFailed, "create config dir").WithMetadata("path", path)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigWriteFailed, "write config").WithMetadata("path", path)
	}
	return nil
}

// Validate rejects values the detection loop cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.CaptureZoneWidth <= 0 || c.CaptureZoneHeight <= 0:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "capture zone must be positive, got %dx%d", c.CaptureZoneWidth, c.CaptureZoneHeight)
	case c.ScanDelay <= 0 || c.ActiveScanDelay <= 0:
		return apperrors.New(apperrors.CodeConfigInvalid, "scan delays must be positive")
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "confidence_threshold %.2f outside [0,1]", c.ConfidenceThreshold)
	case c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "similarity_threshold %.2f outside [0,1]", c.SimilarityThreshold)
	case c.HeartbeatEvery <= 0:
		return apperrors.New(apperrors.CodeConfigInvalid, "heartbeat_every must be positive")
	case c.ContrastFactor < 0 || c.SharpnessFactor < 0:
		return apperrors.New(apperrors.CodeConfigInvalid, "contrast_factor and sharpness_factor must not be negative")
	case c.MedianSize < 1 || c.MedianSize%2 == 0:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "median_size must be odd and positive, got %d", c.MedianSize)
	case c.ScreenWidth <= 0 || c.ScreenHeight <= 0:
		return apperrors.New(apperrors.CodeConfigInvalid, "screen size must be positive")
	case c.CounterFile == "":
		return apperrors.New(apperrors.CodeConfigInvalid, "counter_file is required")
	case len(c.OCRLanguages) == 0:
		return apperrors.New(apperrors.CodeConfigInvalid, "at least one OCR language is required")
	case c.MaxHashDistance < 0:
		return apperrors.New(apperrors.CodeConfigInvalid, "max_hash_distance must not be negative")
	}
	return nil
}

// IdleDelay is the pause between cycles while no death is on screen.
func (c *Config) IdleDelay() time.Duration { return seconds(c.ScanDelay) }

// ActiveDelay is the pause between cycles while a death is on screen.
func (c *Config) ActiveDelay() time.Duration { return seconds(c.ActiveScanDelay) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) applyEnv() {
	c.CaptureZoneWidth = getEnvInt("DEATHCOUNTER_CAPTURE_ZONE_WIDTH", c.CaptureZoneWidth)
	c.CaptureZoneHeight = getEnvInt("DEATHCOUNTER_CAPTURE_ZONE_HEIGHT", c.CaptureZoneHeight)
	c.VerboseMode = getEnvBool("DEATHCOUNTER_VERBOSE", c.VerboseMode)
	c.DebugMode = getEnvBool("DEATHCOUNTER_DEBUG", c.DebugMode)
	c.ScanDelay = getEnvFloat("DEATHCOUNTER_SCAN_DELAY", c.ScanDelay)
	c.ActiveScanDelay = getEnvFloat("DEATHCOUNTER_ACTIVE_SCAN_DELAY", c.ActiveScanDelay)
	c.ConfidenceThreshold = getEnvFloat("DEATHCOUNTER_CONFIDENCE_THRESHOLD", c.ConfidenceThreshold)
	c.SimilarityThreshold = getEnvFloat("DEATHCOUNTER_SIMILARITY_THRESHOLD", c.SimilarityThreshold)
	c.SelectedScreen = getEnv("DEATHCOUNTER_SCREEN", c.SelectedScreen)
	c.ScreenWidth = getEnvInt("DEATHCOUNTER_SCREEN_WIDTH", c.ScreenWidth)
	c.ScreenHeight = getEnvInt("DEATHCOUNTER_SCREEN_HEIGHT", c.ScreenHeight)
	c.CounterFile = getEnv("DEATHCOUNTER_COUNTER_FILE", c.CounterFile)
	c.JournalPath = getEnv("DEATHCOUNTER_JOURNAL_PATH", c.JournalPath)
	c.ArtifactDir = getEnv("DEATHCOUNTER_ARTIFACT_DIR", c.ArtifactDir)
	c.OCRLanguages = getEnvList("DEATHCOUNTER_OCR_LANGUAGES", c.OCRLanguages)
	c.TessdataPrefix = getEnv("TESSDATA_PREFIX", c.TessdataPrefix)
	c.SoundCue = getEnvBool("DEATHCOUNTER_SOUND_CUE", c.SoundCue)
	c.SkipSimilarFrames = getEnvBool("DEATHCOUNTER_SKIP_SIMILAR_FRAMES", c.SkipSimilarFrames)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
