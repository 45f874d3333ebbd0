// Package overrides stores the per-channel manual phase corrections applied
// on top of the automatic alignment offset.
//
// The store is a YAML mapping from channel id to seconds, optionally nested
// under a phase_offsets key:
//
//	# positive values delay the device signal
//	phase_offsets:
//	  vcf: 0.00012
//	  il1: -0.00003
//
// Each entry is validated on its own; a bad entry is rejected and reported
// without affecting the others.
package overrides

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/telemetry.report/internal/monitoring"
)

const sectionKey = "phase_offsets"

// Store maps channel id to a manual offset in seconds. Absent ids mean zero.
type Store map[string]float64

// Get returns the offset for id, zero when absent.
func (s Store) Get(id string) float64 {
	return s[normalizeKey(id)]
}

// IDs returns the stored channel ids in sorted order.
func (s Store) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Rejected describes an entry that was skipped while loading.
type Rejected struct {
	Key    string
	Line   int
	Reason string
}

func (r Rejected) String() string {
	if r.Key == "" {
		return fmt.Sprintf("line %d: %s", r.Line, r.Reason)
	}
	return fmt.Sprintf("line %d: %q: %s", r.Line, r.Key, r.Reason)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Load reads the store at path. A missing file yields an empty store. A file
// that is not a YAML mapping yields an empty store and a single rejection.
// Only failures to read an existing file are returned as errors.
func Load(path string) (Store, []Rejected, error) {
	store := Store{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		monitoring.Logf("phase overrides: %s not found, using zero offsets", path)
		return store, nil, nil
	}
	if err != nil {
		return store, nil, fmt.Errorf("read phase overrides %s: %w", path, err)
	}
	store, rejected := Parse(data)
	for _, r := range rejected {
		monitoring.Logf("phase overrides: %s: skipped %s", path, r)
	}
	return store, rejected, nil
}

// Parse decodes a store from YAML bytes.
func Parse(data []byte) (Store, []Rejected) {
	store := Store{}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return store, []Rejected{{Reason: fmt.Sprintf("malformed YAML: %v", err)}}
	}
	if len(doc.Content) == 0 {
		return store, nil // empty file
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return store, []Rejected{{Line: root.Line, Reason: "expected a mapping of channel to seconds"}}
	}
	if len(root.Content) == 2 && root.Content[0].Value == sectionKey {
		root = root.Content[1]
		if root.Kind != yaml.MappingNode {
			return store, []Rejected{{Line: root.Line, Reason: sectionKey + " must be a mapping"}}
		}
	}

	var rejected []Rejected
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		key := normalizeKey(k.Value)
		switch {
		case k.Kind != yaml.ScalarNode || key == "":
			rejected = append(rejected, Rejected{Key: k.Value, Line: k.Line, Reason: "channel id must be a non-empty string"})
			continue
		case v.Kind != yaml.ScalarNode:
			rejected = append(rejected, Rejected{Key: key, Line: v.Line, Reason: "offset must be a number"})
			continue
		}
		if _, dup := store[key]; dup {
			rejected = append(rejected, Rejected{Key: key, Line: k.Line, Reason: "duplicate channel id"})
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			rejected = append(rejected, Rejected{Key: key, Line: v.Line, Reason: fmt.Sprintf("offset %q is not a finite number", v.Value)})
			continue
		}
		store[key] = f
	}
	return store, rejected
}

// Quantize rounds v to a multiple of step. A non-positive step leaves v
// unchanged.
func Quantize(v, step float64) float64 {
	if !(step > 0) {
		return v
	}
	return math.Round(v/step) * step
}

type document struct {
	PhaseOffsets map[string]float64 `yaml:"phase_offsets"`
}

// Save writes store to path with every offset quantized to step.
func Save(path string, store Store, step float64) error {
	doc := document{PhaseOffsets: make(map[string]float64, len(store))}
	for id, v := range store {
		doc.PhaseOffsets[normalizeKey(id)] = Quantize(v, step)
	}
	body, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode phase overrides: %w", err)
	}
	header := "# Manual phase corrections per channel, in seconds.\n" +
		"# Positive values delay the device signal, negative values advance it.\n"
	if err := os.WriteFile(path, append([]byte(header), body...), 0o644); err != nil {
		return fmt.Errorf("write phase overrides %s: %w", path, err)
	}
	return nil
}
