package config

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Flag is a runtime setting. Values survive restarts through the flags file.
type Flag[T any] interface {
	Value() T
	Update(ctx context.Context, val T) error
	Name() string
	Description() string
}

// FlagInfo is a read-only view of a registered flag, for listings.
type FlagInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       any    `json:"value"`
}

// storedFlag is the untyped side of a flag, used by the registry.
type storedFlag interface {
	info() FlagInfo
	decode(raw json.RawMessage) error
	// parse accepts the looser syntax of GIVEMART_FLAG_OVERRIDES.
	parse(raw string) error
}

type flagRegistry struct {
	mu    sync.RWMutex
	path  string
	flags map[string]storedFlag
}

var registry = &flagRegistry{flags: make(map[string]storedFlag)}

type typedFlag[T any] struct {
	name, description string

	mu  sync.RWMutex
	val T
}

// GenFlag registers a flag under name. Names are dotted paths, grouped by concern.
func GenFlag[T any](name string, defaultVal T, description string) Flag[T] {
	f := &typedFlag[T]{name: name, description: description, val: defaultVal}
	registry.mu.Lock()
	registry.flags[name] = f
	registry.mu.Unlock()
	return f
}

func (f *typedFlag[T]) Value() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.val
}

func (f *typedFlag[T]) Name() string        { return f.name }
func (f *typedFlag[T]) Description() string { return f.description }

// Update sets the value and persists every flag if a flags file is configured.
func (f *typedFlag[T]) Update(ctx context.Context, val T) error {
	f.mu.Lock()
	f.val = val
	f.mu.Unlock()
	if FlagsPath() == "" {
		return nil
	}
	return SaveFlags(ctx)
}

func (f *typedFlag[T]) info() FlagInfo {
	return FlagInfo{Name: f.name, Description: f.description, Value: f.Value()}
}

func (f *typedFlag[T]) decode(raw json.RawMessage) error {
	var val T
	if err := json.Unmarshal(raw, &val); err != nil {
		return fmt.Errorf("flag %s expects a %T value", f.name, val)
	}
	f.mu.Lock()
	f.val = val
	f.mu.Unlock()
	return nil
}

func (f *typedFlag[T]) parse(raw string) error {
	err := f.decode(json.RawMessage(raw))
	if err == nil {
		return nil
	}
	if s, ok := any(&f.val).(*string); ok {
		f.mu.Lock()
		*s = raw
		f.mu.Unlock()
		return nil
	}
	return err
}

// LookupFlag returns the flag registered under name, if it holds a T.
func LookupFlag[T any](name string) (Flag[T], bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.flags[name].(*typedFlag[T])
	if !ok {
		return nil, false
	}
	return f, true
}

// Flags lists every registered flag, sorted by name.
func Flags() []FlagInfo {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	infos := make([]FlagInfo, 0, len(registry.flags))
	for _, f := range registry.flags {
		infos = append(infos, f.info())
	}
	slices.SortFunc(infos, func(a, b FlagInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return infos
}

// SetFlag parses raw like an override and persists the result.
func SetFlag(ctx context.Context, name, raw string) error {
	registry.mu.RLock()
	f, ok := registry.flags[name]
	registry.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown flag %q", name)
	}
	if err := f.parse(raw); err != nil {
		return err
	}
	if FlagsPath() == "" {
		return nil
	}
	return SaveFlags(ctx)
}

func SetFlagsPath(path string) {
	registry.mu.Lock()
	registry.path = path
	registry.mu.Unlock()
}

func FlagsPath() string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.path
}

// LoadFlags applies the flags file, then GIVEMART_FLAG_OVERRIDES: comma
// separated name=value pairs, where values are JSON except that strings may
// be left unquoted. A missing flags file is not an error.
func LoadFlags(ctx context.Context, warnUnknown bool) error {
	path := FlagsPath()
	if path == "" {
		return errors.New("flags path is not set")
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("couldn't read flags: %w", err)
	}
	stored := make(map[string]json.RawMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("couldn't decode flags: %w", err)
		}
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	for name, raw := range stored {
		f, ok := registry.flags[name]
		if !ok {
			if warnUnknown {
				slog.WarnContext(ctx, "Unknown flag in flags file", slog.String("flag", name))
			}
			continue
		}
		if err := f.decode(raw); err != nil {
			slog.WarnContext(ctx, "Couldn't load flag", slog.String("flag", name), slog.Any("err", err))
		}
	}

	for override := range strings.SplitSeq(os.Getenv("GIVEMART_FLAG_OVERRIDES"), ",") {
		if override == "" {
			continue
		}
		name, raw, found := strings.Cut(override, "=")
		if !found {
			slog.WarnContext(ctx, "Invalid flag override", slog.String("override", override))
			continue
		}
		f, ok := registry.flags[name]
		if !ok {
			slog.WarnContext(ctx, "Override for unknown flag", slog.String("flag", name))
			continue
		}
		if err := f.parse(raw); err != nil {
			slog.WarnContext(ctx, "Invalid flag override", slog.String("flag", name), slog.Any("err", err))
		}
	}
	return nil
}

// SaveFlags writes every flag value to the flags file.
func SaveFlags(ctx context.Context) error {
	path := FlagsPath()
	if path == "" {
		return errors.New("flags path is not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	values := make(map[string]any)
	for _, info := range Flags() {
		values[info.Name] = info.Value
	}
	data, err := json.MarshalIndent(values, "", "\t")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Saved flags", slog.String("path", path))
	return nil
}
