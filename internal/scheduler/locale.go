package scheduler

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "es"

// ErrUnknownLocale indicates no table exists for the requested locale code.
var ErrUnknownLocale = errors.New("scheduler: unknown locale")

// Messages holds the user facing status texts of an editing session.
type Messages struct {
	BlankDay        string `yaml:"blank_day"`
	UnknownDay      string `yaml:"unknown_day"`
	InvalidDayRange string `yaml:"invalid_day_range"`
	InvalidHours    string `yaml:"invalid_hours"`
	Overlap         string `yaml:"overlap"`
	Added           string `yaml:"added"`
	Removed         string `yaml:"removed"`
	Cleared         string `yaml:"cleared"`
}

// Locale maps day names to numbers and back for one display language.
type Locale struct {
	Code      string         `yaml:"code"`
	Days      []string       `yaml:"days"`
	Aliases   map[string]Day `yaml:"aliases"`
	Connector string         `yaml:"connector"`
	Messages  Messages       `yaml:"messages"`

	lookup map[string]Day
}

// ParseLocale decodes and validates a YAML locale table.
func ParseLocale(data []byte) (*Locale, error) {
	var loc Locale
	if err := yaml.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("decode locale: %w", err)
	}
	if strings.TrimSpace(loc.Code) == "" {
		return nil, errors.New("locale: code is required")
	}
	if len(loc.Days) != 7 {
		return nil, fmt.Errorf("locale %s: expected 7 day names, got %d", loc.Code, len(loc.Days))
	}
	if strings.TrimSpace(loc.Connector) == "" {
		return nil, fmt.Errorf("locale %s: connector is required", loc.Code)
	}

	loc.lookup = make(map[string]Day, len(loc.Days)+len(loc.Aliases))
	for i, name := range loc.Days {
		key := normalizeDayName(name)
		if key == "" {
			return nil, fmt.Errorf("locale %s: day %d has no name", loc.Code, i+1)
		}
		loc.lookup[key] = Day(i + 1)
	}
	for alias, day := range loc.Aliases {
		if !day.Valid() {
			return nil, fmt.Errorf("locale %s: alias %q maps to invalid day %d", loc.Code, alias, day)
		}
		loc.lookup[normalizeDayName(alias)] = day
	}
	return &loc, nil
}

// LoadLocale returns the embedded locale table for code.
func LoadLocale(code string) (*Locale, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = DefaultLocale
	}
	data, err := localeFS.ReadFile(path.Join("locales", code+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocale, code)
	}
	return ParseLocale(data)
}

// MustLoadLocale is LoadLocale for embedded codes known at compile time.
func MustLoadLocale(code string) *Locale {
	loc, err := LoadLocale(code)
	if err != nil {
		panic(err)
	}
	return loc
}

// AvailableLocales lists the embedded locale codes.
func AvailableLocales() []string {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil
	}
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(codes)
	return codes
}

// DayNumber resolves a display name, ignoring case and surrounding space.
func (l *Locale) DayNumber(name string) (Day, bool) {
	day, ok := l.lookup[normalizeDayName(name)]
	return day, ok
}

// DayName returns the display name for d, or "" when d is invalid.
func (l *Locale) DayName(d Day) string {
	if !d.Valid() {
		return ""
	}
	return l.Days[d-1]
}

// Format renders s as "<day> <connector> <day> | 🕒 HH:MM - HH:MM".
func (l *Locale) Format(s Schedule) string {
	return fmt.Sprintf("%s %s %s | 🕒 %s - %s",
		l.DayName(s.DayStart()), l.Connector, l.DayName(s.DayEnd()), s.Start(), s.End())
}

func normalizeDayName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
