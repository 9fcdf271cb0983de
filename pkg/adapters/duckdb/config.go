package duckdb

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// ReadOnly opens file databases with access_mode=READ_ONLY. Defaults to true.
	ReadOnly *bool `mapstructure:"read_only"`

	// Settings are passed to DuckDB as connection options (e.g. threads, memory_limit).
	Settings map[string]string `mapstructure:"settings"`
}

var settingNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ParseParams decodes raw adapter params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	for name := range p.Settings {
		if !settingNameRe.MatchString(name) {
			return nil, fmt.Errorf("invalid duckdb setting name %q", name)
		}
	}
	return p, nil
}

// readOnly reports whether the database should be opened read-only.
func (p *Params) readOnly() bool {
	return p.ReadOnly == nil || *p.ReadOnly
}

// buildDSN returns the go-duckdb connection string for path.
func buildDSN(path string, p *Params) string {
	if path == "" {
		path = ":memory:"
	}
	q := url.Values{}
	if path != ":memory:" && p.readOnly() {
		q.Set("access_mode", "READ_ONLY")
	}
	names := make([]string, 0, len(p.Settings))
	for name := range p.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		q.Set(name, p.Settings[name])
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
