package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FeatureFlags toggles optional parts of the service at startup and, for
// operators, at runtime.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// Read-through Redis cache for student lookups.
	FeatureStudentCache = "cache.students"
	// Periodic scan publishing eligible students.
	FeatureEligibilityScan = "jobs.eligibility_scan"
	// Mirror domain events to a Redis channel.
	FeatureEventFanout = "events.redis_fanout"
	// The upcoming promotions endpoint.
	FeatureUpcomingWidget = "api.upcoming_promotions"
)

// LoadFeatureFlags builds the defaults and applies FEATURE_<NAME> overrides
// read through v, e.g. FEATURE_JOBS_ELIGIBILITY_SCAN=false.
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()

	for name, f := range ff.features {
		key := featureNameToKey(name)
		if v != nil && v.IsSet(key) {
			f.Enabled = v.GetBool(key)
		}
	}
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.register(FeatureStudentCache, "Cache student records in Redis", true)
	ff.register(FeatureEligibilityScan, "Scan active students for promotion eligibility", true)
	ff.register(FeatureEventFanout, "Publish domain events on a Redis channel", false)
	ff.register(FeatureUpcomingWidget, "Serve the upcoming promotions list", true)
}

func (ff *FeatureFlags) register(name, description string, enabled bool) {
	ff.features[name] = &Feature{Name: name, Description: description, Enabled: enabled}
}

// featureNameToKey converts a feature name to its config key.
// "jobs.eligibility_scan" -> "feature.jobs_eligibility_scan" (FEATURE_JOBS_ELIGIBILITY_SCAN)
func featureNameToKey(name string) string {
	return "feature." + strings.ReplaceAll(name, ".", "_")
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// SetEnabled flips a feature at runtime.
func (ff *FeatureFlags) SetEnabled(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}
	f.Enabled = enabled
	return nil
}

// All returns a snapshot of every feature, sorted by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- Errors ---

// ErrFeatureNotFound is returned for an unknown feature name.
var ErrFeatureNotFound = errors.New("feature not found")
