package spread

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// IgnoreList suppresses alerts for symbols matching any configured prefix.
// It is loaded once at startup and read-only afterwards.
type IgnoreList struct {
	prefixes []string
}

type ignoreFile struct {
	IgnoringTokens []string `json:"ignoring_tokens"`
}

// LoadIgnoreList reads the ignore file. A missing or corrupt file degrades
// to an empty list with a single warning.
func LoadIgnoreList(path string, logger zerolog.Logger) *IgnoreList {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("ignore list not loaded, using empty set")
		return &IgnoreList{}
	}

	var file ignoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("ignore list malformed, using empty set")
		return &IgnoreList{}
	}

	prefixes := make([]string, 0, len(file.IgnoringTokens))
	for _, p := range file.IgnoringTokens {
		if p == "" {
			continue
		}
		prefixes = append(prefixes, strings.ToUpper(p))
	}
	return &IgnoreList{prefixes: prefixes}
}

// NewIgnoreList builds a list from prefixes directly.
func NewIgnoreList(prefixes ...string) *IgnoreList {
	upper := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		upper = append(upper, strings.ToUpper(p))
	}
	return &IgnoreList{prefixes: upper}
}

// Ignored reports whether any configured prefix prefixes the symbol.
func (l *IgnoreList) Ignored(symbol string) bool {
	for _, p := range l.prefixes {
		if strings.HasPrefix(symbol, p) {
			return true
		}
	}
	return false
}

// Prefixes returns the configured prefixes.
func (l *IgnoreList) Prefixes() []string {
	return append([]string(nil), l.prefixes...)
}
