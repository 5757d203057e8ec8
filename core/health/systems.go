package health

import (
	_ "embed"
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// System categories
const (
	CategoryCoverage = "coverage"
	CategoryUsage    = "usage"
	CategoryAdoption = "adoption"
)

// Primary metric keys
const (
	MetricCoveragePercent = "coverage_percent"
	MetricUsagePercent    = "usage_percent"
	MetricAdoptionPercent = "adoption_percent"
)

//go:embed systems.yaml
var defaultCatalog []byte

type System struct {
	Key                string `yaml:"key" json:"key"`
	Label              string `yaml:"label" json:"label"`
	Category           string `yaml:"category" json:"category"`
	Core               bool   `yaml:"core" json:"core"`
	DeviceCoverageOnly bool   `yaml:"device_coverage_only" json:"device_coverage_only"`
}

// PrimaryMetricKey is the metric key holding the system's canonical percent.
func (s System) PrimaryMetricKey() string {
	switch s.Category {
	case CategoryCoverage:
		return MetricCoveragePercent
	case CategoryUsage:
		return MetricUsagePercent
	default:
		return MetricAdoptionPercent
	}
}

// Slug is the category id used for the system in snapshots.
func (s System) Slug() string {
	return Slugify(s.Key)
}

// Matches reports whether ref (a system key, category id or label) names s.
func (s System) Matches(ref string) bool {
	n := normalizeRef(ref)
	return n != "" && (n == normalizeRef(s.Key) || n == normalizeRef(s.Label))
}

// Catalog is the ordered set of known systems.
type Catalog struct {
	Systems []System `yaml:"systems" json:"systems"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() Catalog {
	cat, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(errors.Wrap(err, "parsing embedded systems catalog"))
	}
	return cat
}

// LoadCatalog reads a catalog file; an empty path gives the embedded catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "reading systems catalog")
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(b, &cat); err != nil {
		return Catalog{}, errors.Wrap(err, "decoding systems catalog")
	}
	seen := make(map[string]bool, len(cat.Systems))
	for i, sys := range cat.Systems {
		if strings.TrimSpace(sys.Key) == "" {
			return Catalog{}, errors.Errorf("system #%d: missing key", i+1)
		}
		n := normalizeRef(sys.Key)
		if seen[n] {
			return Catalog{}, errors.Errorf("system %q: duplicate key", sys.Key)
		}
		seen[n] = true
		switch sys.Category {
		case CategoryCoverage, CategoryUsage, CategoryAdoption:
		case "":
			cat.Systems[i].Category = CategoryAdoption
		default:
			return Catalog{}, errors.Errorf("system %q: unknown category %q", sys.Key, sys.Category)
		}
		if sys.Label == "" {
			cat.Systems[i].Label = sys.Key
		}
	}
	return cat, nil
}

// Lookup finds the system named by a key, category id or label.
func (c Catalog) Lookup(ref string) (System, bool) {
	for _, sys := range c.Systems {
		if sys.Matches(ref) {
			return sys, true
		}
	}
	return System{}, false
}

// Core returns the core systems in catalog order.
func (c Catalog) Core() []System {
	out := make([]System, 0, len(c.Systems))
	for _, sys := range c.Systems {
		if sys.Core {
			out = append(out, sys)
		}
	}
	return out
}

// Slugify lowercases s and joins its alphanumeric runs with "-".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			dash = false
		} else {
			dash = true
		}
	}
	return b.String()
}

func normalizeRef(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
