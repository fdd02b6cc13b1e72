package carbon

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

//go:embed data/emission_factors.json
var defaultFactorsJSON []byte

// ErrInvalidFactorTable is returned when a factor table fails to load or validate.
var ErrInvalidFactorTable = errors.New("invalid emission factor table")

// FactorTable is an immutable set of emission factors for the four tracked
// categories plus any configured activity types.
type FactorTable struct {
	factors    map[Category]EmissionFactor
	activities map[string]ActivityType
}

// factorEntry is the on-disk shape of one table entry. Entries outside the
// four tracked categories must carry a scope and become activity types.
type factorEntry struct {
	Category string  `json:"category" yaml:"category"`
	Unit     string  `json:"unit" yaml:"unit"`
	Factor   float64 `json:"factor" yaml:"factor"`
	Scope    Scope   `json:"scope,omitempty" yaml:"scope,omitempty"`
}

var (
	defaultTable     *FactorTable
	defaultTableErr  error
	defaultTableOnce sync.Once
)

// DefaultFactorTable returns the table embedded in the binary.
// The embedded data is parsed exactly once.
func DefaultFactorTable() *FactorTable {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = ParseFactorTable(defaultFactorsJSON, FormatJSON)
	})
	if defaultTableErr != nil {
		// The embedded table is validated by tests; failing here is a build defect.
		panic(fmt.Sprintf("carbon: embedded factor table: %v", defaultTableErr))
	}
	return defaultTable
}

// Format names a factor table encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// LoadFactorTable reads and validates a factor table file.
func LoadFactorTable(path string) (*FactorTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read factor table %s: %w", path, err)
	}
	table, err := ParseFactorTable(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("load factor table %s: %w", path, err)
	}
	return table, nil
}

// ParseFactorTable decodes and validates a factor table.
func ParseFactorTable(data []byte, format Format) (*FactorTable, error) {
	var raw map[string]factorEntry
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidFactorTable, format, err)
	}

	var factors []EmissionFactor
	var activities []ActivityType
	for key, entry := range raw {
		if entry.Category != "" && entry.Category != key {
			return nil, fmt.Errorf("%w: entry %q declares category %q", ErrInvalidFactorTable, key, entry.Category)
		}
		if Category(key).Valid() {
			factors = append(factors, EmissionFactor{
				Category: Category(key),
				Unit:     entry.Unit,
				Factor:   entry.Factor,
			})
			continue
		}
		if entry.Scope == 0 {
			return nil, fmt.Errorf("%w: unknown category %q has no scope", ErrInvalidFactorTable, key)
		}
		activities = append(activities, ActivityType{
			Name:   key,
			Unit:   entry.Unit,
			Factor: entry.Factor,
			Scope:  entry.Scope,
		})
	}
	return NewFactorTable(factors, activities)
}

// NewFactorTable validates the given factors and returns an immutable table.
// All four tracked categories are required and every factor must be finite and
// non-negative.
func NewFactorTable(factors []EmissionFactor, activities []ActivityType) (*FactorTable, error) {
	t := &FactorTable{
		factors:    make(map[Category]EmissionFactor, len(Categories)),
		activities: make(map[string]ActivityType, len(activities)),
	}
	for _, f := range factors {
		if !f.Category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidFactorTable, f.Category)
		}
		if err := checkFactor(string(f.Category), f.Factor); err != nil {
			return nil, err
		}
		if _, dup := t.factors[f.Category]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidFactorTable, f.Category)
		}
		t.factors[f.Category] = f
	}
	for _, c := range Categories {
		if _, ok := t.factors[c]; !ok {
			return nil, fmt.Errorf("%w: missing category %q", ErrInvalidFactorTable, c)
		}
	}
	for _, a := range activities {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: activity type without name", ErrInvalidFactorTable)
		}
		if !a.Scope.Valid() {
			return nil, fmt.Errorf("%w: activity %q has invalid scope %d", ErrInvalidFactorTable, a.Name, a.Scope)
		}
		if err := checkFactor(a.Name, a.Factor); err != nil {
			return nil, err
		}
		if _, dup := t.activities[a.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate activity %q", ErrInvalidFactorTable, a.Name)
		}
		t.activities[a.Name] = a
	}
	return t, nil
}

func checkFactor(name string, factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("%w: factor for %q is not finite", ErrInvalidFactorTable, name)
	}
	if factor < 0 {
		return fmt.Errorf("%w: factor for %q is negative", ErrInvalidFactorTable, name)
	}
	return nil
}

// Factor returns the emission factor for a tracked category.
// Unknown categories return a zero factor.
func (t *FactorTable) Factor(c Category) EmissionFactor {
	return t.factors[c]
}

// Factors returns the four category factors in summation order.
func (t *FactorTable) Factors() []EmissionFactor {
	out := make([]EmissionFactor, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, t.factors[c])
	}
	return out
}

// Activity looks up an activity type by name.
func (t *FactorTable) Activity(name string) (ActivityType, bool) {
	a, ok := t.activities[name]
	return a, ok
}

// Activities returns all activity types sorted by name.
func (t *FactorTable) Activities() []ActivityType {
	out := make([]ActivityType, 0, len(t.activities))
	for _, a := range t.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MarshalJSON encodes the table in the same keyed shape it is loaded from.
func (t *FactorTable) MarshalJSON() ([]byte, error) {
	out := make(map[string]factorEntry, len(t.factors)+len(t.activities))
	for c, f := range t.factors {
		out[string(c)] = factorEntry{Category: string(c), Unit: f.Unit, Factor: f.Factor}
	}
	for name, a := range t.activities {
		out[name] = factorEntry{Category: name, Unit: a.Unit, Factor: a.Factor, Scope: a.Scope}
	}
	return json.Marshal(out)
}
