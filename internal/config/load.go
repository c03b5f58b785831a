package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// FileError is a config file that could not be read, parsed or validated.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	var ce cueerrors.Error
	if errors.As(e.Err, &ce) {
		return fmt.Sprintf("config %s: %s", e.Path, strings.TrimSpace(cueerrors.Details(e.Err, nil)))
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Is makes every FileError match ErrInvalidConfig.
func (e *FileError) Is(target error) bool { return target == ErrInvalidConfig }

// DefaultPath returns $XDG_CONFIG_HOME/smtcache/config.yaml, or "" when
// no user config directory is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "smtcache", "config.yaml")
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is an explicit config file. It must exist.
	Path string

	// DefaultPath is read when Path is empty and the file exists.
	// Load fills it from DefaultPath() when empty; set NoDefaultPath to
	// skip it entirely.
	DefaultPath   string
	NoDefaultPath bool

	// LookupEnv reads the environment. Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Flags are the command-line values, highest precedence.
	Flags Overrides
}

// Load reads every source and resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	var (
		file   Overrides
		source string
	)

	path := opts.Path
	if path == "" && !opts.NoDefaultPath {
		candidate := opts.DefaultPath
		if candidate == "" {
			candidate = DefaultPath()
		}
		if candidate != "" {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		o, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		file, source = o, path
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	c, err := Resolve(file, EnvOverrides(lookup), opts.Flags)
	if err != nil {
		return nil, err
	}
	c.Source = source
	return c, nil
}

// LoadFile reads a YAML (.yaml, .yml) or CUE (.cue) config file and
// validates it against the embedded schema.
func LoadFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, &FileError{Path: path, Err: err}
	}

	cctx := cuecontext.New()
	var v cue.Value

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		v = cctx.CompileBytes(data, cue.Filename(path))
	case ".yaml", ".yml":
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Overrides{}, &FileError{Path: path, Err: err}
		}
		if raw == nil {
			raw = map[string]interface{}{}
		}
		v = cctx.Encode(raw)
	default:
		return Overrides{}, &FileError{Path: path, Err: fmt.Errorf("unsupported config format %q", filepath.Ext(path))}
	}
	if err := v.Err(); err != nil {
		return Overrides{}, &FileError{Path: path, Err: err}
	}

	o, err := decode(cctx, v)
	if err != nil {
		return Overrides{}, &FileError{Path: path, Err: err}
	}
	return o, nil
}

// decode validates v against #Config and decodes it.
func decode(cctx *cue.Context, v cue.Value) (Overrides, error) {
	schema := cctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Overrides{}, fmt.Errorf("compile schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Overrides{}, err
	}

	var o Overrides
	if err := unified.Decode(&o); err != nil {
		return Overrides{}, err
	}
	return o, nil
}
