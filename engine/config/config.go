package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultQueueSize        = 256
	DefaultIdleTimeout      = time.Second
	DefaultMaxMorphDepth    = 8
	DefaultEdgeScaleFactor  = 1.0
	DefaultProfilerInterval = time.Second
)

// Duration is a time.Duration that decodes from strings such as "250ms" in both TOML and YAML.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML parses a scalar YAML node as a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalYAML formats the duration as a Go duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds the runtime knobs of a Deformer.
type Config struct {
	// Workers is the skinning pool size. 1 skins inline on the calling goroutine.
	Workers int `toml:"workers" yaml:"workers"`

	// QueueSize is the skinning pool's task queue capacity.
	QueueSize int `toml:"queue_size" yaml:"queue_size"`

	// IdleTimeout is how long surplus pool workers linger.
	IdleTimeout Duration `toml:"idle_timeout" yaml:"idle_timeout"`

	// MaxMorphDepth bounds group morph nesting.
	MaxMorphDepth int `toml:"max_morph_depth" yaml:"max_morph_depth"`

	// EdgeScaleFactor is the global outline width multiplier.
	EdgeScaleFactor float32 `toml:"edge_scale_factor" yaml:"edge_scale_factor"`

	// PhysicsEnabled toggles the kinematic push and dynamic pull stages of a frame.
	PhysicsEnabled bool `toml:"physics_enabled" yaml:"physics_enabled"`

	// ProfilerInterval is how often stage timings are logged. Zero leaves profiling
	// off unless it is enabled explicitly, in which case DefaultProfilerInterval applies.
	ProfilerInterval Duration `toml:"profiler_interval" yaml:"profiler_interval"`
}

// Default returns a Config with every field set to its default.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Workers:          defaultWorkers(),
		QueueSize:        DefaultQueueSize,
		IdleTimeout:      Duration(DefaultIdleTimeout),
		MaxMorphDepth:    DefaultMaxMorphDepth,
		EdgeScaleFactor:  DefaultEdgeScaleFactor,
		PhysicsEnabled:   true,
		ProfilerInterval: 0,
	}
}

// Resolve fills zero numeric fields with defaults. Booleans and the profiler
// interval are left as loaded since zero is meaningful for them.
//
// Returns:
//   - Config: the resolved configuration
func (c Config) Resolve() Config {
	d := Default()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxMorphDepth <= 0 {
		c.MaxMorphDepth = d.MaxMorphDepth
	}
	if c.EdgeScaleFactor <= 0 {
		c.EdgeScaleFactor = d.EdgeScaleFactor
	}
	if c.ProfilerInterval < 0 {
		c.ProfilerInterval = 0
	}
	return c
}

// Load reads a configuration file, choosing the decoder by extension
// (.toml, .yaml or .yml). Fields missing from the file keep their defaults.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the resolved configuration
//   - error: an error if the file cannot be read or decoded
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return Decode(data, FormatTOML)
	case ".yaml", ".yml":
		return Decode(data, FormatYAML)
	default:
		return Config{}, fmt.Errorf("config: %s: %w", path, &UnsupportedFormatError{Ext: ext})
	}
}

// Format selects a configuration encoding.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// UnsupportedFormatError is returned for files whose extension has no decoder.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Ext)
}

// Decode parses configuration bytes in the given format on top of Default.
//
// Parameters:
//   - data: the encoded configuration
//   - format: the encoding
//
// Returns:
//   - Config: the resolved configuration
//   - error: an error if decoding fails
func Decode(data []byte, format Format) (Config, error) {
	c := Default()
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return Config{}, fmt.Errorf("config: decode toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: decode yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("config: %w", &UnsupportedFormatError{Ext: fmt.Sprint(format)})
	}
	return c.Resolve(), nil
}

// Encode writes the configuration in the given format.
//
// Parameters:
//   - c: the configuration
//   - format: the encoding
//
// Returns:
//   - []byte: the encoded bytes
//   - error: an error if encoding fails
func Encode(c Config, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		b, err := toml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("config: encode toml: %w", err)
		}
		return b, nil
	case FormatYAML:
		b, err := yaml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("config: encode yaml: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("config: %w", &UnsupportedFormatError{Ext: fmt.Sprint(format)})
}

func defaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}
