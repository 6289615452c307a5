// Package config reads ctfe.toml.
//
//	[target]
//	triple = "x86_64-linux-gnu"
//	pointer-size = 8
//	endian = "little"
//
//	[machine]
//	enforce-number-no-provenance = true
//	check-alignment = false
//
//	[trace]
//	level = "phase"
//	mode = "stream"
//	output = "trace.ndjson"
//	ring-size = 4096
//
//	[run]
//	jobs = 4
//
// Every key is optional. Missing keys keep the values of Default.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"ctfe/internal/interp"
	"ctfe/internal/layout"
	"ctfe/internal/trace"
)

// ErrUnknownKey is wrapped by Load for keys the file format does not define.
var ErrUnknownKey = errors.New("unknown key")

// Config is the resolved configuration.
type Config struct {
	Path    string // file it was read from, empty for defaults
	Target  layout.Target
	Machine interp.Config
	Trace   trace.Config
	Jobs    int
}

// Default returns the configuration used without a ctfe.toml.
func Default() Config {
	return Config{
		Target: layout.X86_64LinuxGNU(),
		Machine: interp.Config{
			EnforceNumberNoProvenance: true,
		},
		Trace: trace.Config{
			Level:    trace.LevelOff,
			Mode:     trace.ModeStream,
			RingSize: trace.DefaultRingSize,
		},
		Jobs: runtime.GOMAXPROCS(0),
	}
}

type fileConfig struct {
	Target struct {
		Triple      string `toml:"triple"`
		PointerSize int    `toml:"pointer-size"`
		Endian      string `toml:"endian"`
	} `toml:"target"`
	Machine struct {
		EnforceNumberNoProvenance bool `toml:"enforce-number-no-provenance"`
		CheckAlignment            bool `toml:"check-alignment"`
	} `toml:"machine"`
	Trace struct {
		Level    string `toml:"level"`
		Mode     string `toml:"mode"`
		Output   string `toml:"output"`
		RingSize int    `toml:"ring-size"`
	} `toml:"trace"`
	Run struct {
		Jobs int `toml:"jobs"`
	} `toml:"run"`
}

// Load reads path on top of Default.
func Load(path string) (Config, error) {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg, err := resolve(meta, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Decode reads a configuration from memory on top of Default.
func Decode(data string) (Config, error) {
	var fc fileConfig
	meta, err := toml.Decode(data, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return resolve(meta, &fc)
}

// Discover loads the nearest ctfe.toml above startDir, or returns Default
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

func resolve(meta toml.MetaData, fc *fileConfig) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w %s", ErrUnknownKey, undecoded[0])
	}
	cfg := Default()

	if meta.IsDefined("target", "triple") {
		t, err := layout.TargetFromTriple(strings.TrimSpace(fc.Target.Triple))
		if err != nil {
			return Config{}, fmt.Errorf("[target].triple: %w", err)
		}
		cfg.Target = t
	}
	if meta.IsDefined("target", "pointer-size") {
		switch fc.Target.PointerSize {
		case 2, 4, 8:
			cfg.Target.PtrSize = fc.Target.PointerSize
			cfg.Target.PtrAlign = fc.Target.PointerSize
		default:
			return Config{}, fmt.Errorf("[target].pointer-size: %d is not 2, 4 or 8", fc.Target.PointerSize)
		}
	}
	if meta.IsDefined("target", "endian") {
		switch strings.ToLower(fc.Target.Endian) {
		case "little":
			cfg.Target.Endian = layout.LittleEndian
		case "big":
			cfg.Target.Endian = layout.BigEndian
		default:
			return Config{}, fmt.Errorf("[target].endian: %q (expected: little|big)", fc.Target.Endian)
		}
	}

	if meta.IsDefined("machine", "enforce-number-no-provenance") {
		cfg.Machine.EnforceNumberNoProvenance = fc.Machine.EnforceNumberNoProvenance
	}
	if meta.IsDefined("machine", "check-alignment") {
		cfg.Machine.CheckAlignment = fc.Machine.CheckAlignment
	}

	if meta.IsDefined("trace", "level") {
		level, err := trace.ParseLevel(fc.Trace.Level)
		if err != nil {
			return Config{}, fmt.Errorf("[trace].level: %w", err)
		}
		cfg.Trace.Level = level
	}
	if meta.IsDefined("trace", "mode") {
		mode, err := trace.ParseMode(fc.Trace.Mode)
		if err != nil {
			return Config{}, fmt.Errorf("[trace].mode: %w", err)
		}
		cfg.Trace.Mode = mode
	}
	if meta.IsDefined("trace", "output") {
		cfg.Trace.OutputPath = fc.Trace.Output
	}
	if meta.IsDefined("trace", "ring-size") {
		if fc.Trace.RingSize <= 0 {
			return Config{}, fmt.Errorf("[trace].ring-size must be positive, got %d", fc.Trace.RingSize)
		}
		cfg.Trace.RingSize = fc.Trace.RingSize
	}

	if meta.IsDefined("run", "jobs") {
		if fc.Run.Jobs <= 0 {
			return Config{}, fmt.Errorf("[run].jobs must be positive, got %d", fc.Run.Jobs)
		}
		cfg.Jobs = fc.Run.Jobs
	}
	return cfg, nil
}
