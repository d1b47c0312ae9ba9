// Package config implements the board's configuration store: a
// line-oriented key=value text file read once at startup, with typed
// lookup and defaults for callers that don't find their key.
//
// This is intentionally a thin, external-collaborator-style contract
// (see spec §4.C) rather than a general config framework — the file
// format is fixed by the studio's tooling, not ours to redesign.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MusicLab-Dev/Board/internal/boardlog"
)

var log = boardlog.For("config")

// DefaultPath is the config file path used when --config-path is absent.
const DefaultPath = "Config.conf"

// Store holds every key=value pair parsed from a config file.
type Store struct {
	values map[string]string
}

// Load reads and parses the file at path. A malformed line (no '=' found,
// or a line starting with '=') is a fatal error, matching the original
// ConfigTable::parseLine contract: this collaborator never tries to be
// forgiving about its own file format.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open config file")
		return nil, err
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) (*Store, error) {
	s := &Store{values: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimLeft(scanner.Text(), " \t\r\n\v\f")
		if line == "" || line[0] == '#' {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			err := fmt.Errorf("config: malformed line %d: %q", lineNo, line)
			log.Error().Err(err).Msg("malformed config line")
			return nil, err
		}

		key := line[:idx]
		value := line[idx+1:]
		s.values[key] = value
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("failed to read config file")
		return nil, err
	}

	return s, nil
}

// Get returns the raw string value for key, or defaultValue if key was
// never set. Note that a key set to the empty string ("Key=") is found
// and returns "", not defaultValue.
func (s *Store) Get(key, defaultValue string) string {
	if s == nil {
		return defaultValue
	}
	if v, ok := s.values[key]; ok {
		return v
	}
	return defaultValue
}

// Number is the set of integer and floating-point types GetAs accepts.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// GetAs looks up key and parses it as T, falling back to defaultValue
// when the key is absent or the value fails to parse.
func GetAs[T Number](s *Store, key string, defaultValue T) T {
	if s == nil {
		return defaultValue
	}
	raw, ok := s.values[key]
	if !ok {
		return defaultValue
	}

	var zero T
	switch any(zero).(type) {
	case float32, float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			log.Warn().Str("key", key).Str("value", raw).Msg("failed to parse float, using default")
			return defaultValue
		}
		return T(v)
	case int, int8, int16, int32, int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warn().Str("key", key).Str("value", raw).Msg("failed to parse int, using default")
			return defaultValue
		}
		return T(v)
	default:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			log.Warn().Str("key", key).Str("value", raw).Msg("failed to parse uint, using default")
			return defaultValue
		}
		return T(v)
	}
}
