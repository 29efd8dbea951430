// Package config loads recon.cue, validated and defaulted by an embedded
// CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for LoadError.
const (
	ErrCodeNotFound = "E101"
	ErrCodeParse    = "E102"
	ErrCodeInvalid  = "E103"
)

// LoadError describes why a configuration could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsInvalid reports whether err is a schema violation.
func IsInvalid(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == ErrCodeInvalid
}

// Config is the decoded recon.cue.
type Config struct {
	Database  string          `json:"database"`
	LogLevel  string          `json:"log_level"`
	Local     Local           `json:"local"`
	Directory DirectoryConfig `json:"directory"`
}

// Local holds the account's own identifiers as strings; empty means unknown.
type Local struct {
	Aci   string `json:"aci"`
	Phone string `json:"phone"`
	Pni   string `json:"pni"`
}

// DirectoryConfig tunes directory refreshes and cleanup rebuilds.
type DirectoryConfig struct {
	RebuildAttempts   int `json:"rebuild_attempts"`
	RebuildBatch      int `json:"rebuild_batch"`
	LookupBatch       int `json:"lookup_batch"`
	ConcurrentLookups int `json:"concurrent_lookups"`
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := decode([]byte("{}"), "defaults.cue")
	if err != nil {
		panic(fmt.Sprintf("config schema defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path), Err: err}
		}
		return Config{}, &LoadError{Code: ErrCodeNotFound, Message: "failed to read config file", Err: err}
	}
	return decode(data, path)
}

// Parse validates CUE source held in memory.
func Parse(data []byte) (Config, error) {
	return decode(data, "recon.cue")
}

func decode(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, &LoadError{Code: ErrCodeParse, Message: details(err), Err: err}
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, &LoadError{Code: ErrCodeInvalid, Message: details(err), Err: err}
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, &LoadError{Code: ErrCodeInvalid, Message: "failed to decode config", Err: err}
	}
	return cfg, nil
}

func details(err error) string {
	return cueerrors.Details(err, nil)
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LocalIdentifiers parses Local. Returns nil when no identifier is set.
func (c Config) LocalIdentifiers() (*recipient.LocalIdentifiers, error) {
	if c.Local == (Local{}) {
		return nil, nil
	}
	local := &recipient.LocalIdentifiers{}
	if c.Local.Aci != "" {
		aci, err := ids.ParseAci(c.Local.Aci)
		if err != nil {
			return nil, fmt.Errorf("local.aci: %w", err)
		}
		local.Aci = aci
	}
	if c.Local.Phone != "" {
		phone, err := ids.ParseE164(c.Local.Phone)
		if err != nil {
			return nil, fmt.Errorf("local.phone: %w", err)
		}
		local.Phone = phone.Ptr()
	}
	if c.Local.Pni != "" {
		pni, err := ids.ParsePni(c.Local.Pni)
		if err != nil {
			return nil, fmt.Errorf("local.pni: %w", err)
		}
		local.Pni = &pni
	}
	return local, nil
}
