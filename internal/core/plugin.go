package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// ErrUnknownModel is returned when a scenario names a model no plugin
// registered.
var ErrUnknownModel = errors.New("unknown model")

// PluginRegistry accumulates plugin contributions. It implements
// pluginapi.Registry.
type PluginRegistry struct {
	treeModels  map[string]pluginapi.TreeModel
	standModels map[string]pluginapi.StandModel
	harvest     map[string]pluginapi.HarvestFactory
	rules       []domain.Rule
}

var _ pluginapi.Registry = (*PluginRegistry)(nil)

// NewPluginRegistry constructs an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		treeModels:  make(map[string]pluginapi.TreeModel),
		standModels: make(map[string]pluginapi.StandModel),
		harvest:     make(map[string]pluginapi.HarvestFactory),
	}
}

func normalizeKey(key string) string { return strings.ToLower(strings.TrimSpace(key)) }

func (r *PluginRegistry) claim(key string, present bool) (string, error) {
	k := normalizeKey(key)
	if k == "" {
		return "", errors.New("model key required")
	}
	if !present {
		return "", fmt.Errorf("model %s: nil implementation", k)
	}
	if r.has(k) {
		return "", fmt.Errorf("model %s already registered", k)
	}
	return k, nil
}

func (r *PluginRegistry) has(key string) bool {
	_, tree := r.treeModels[key]
	_, stand := r.standModels[key]
	_, harvest := r.harvest[key]
	return tree || stand || harvest
}

// RegisterTreeModel adds an individual-tree model under key.
func (r *PluginRegistry) RegisterTreeModel(key string, model pluginapi.TreeModel) error {
	k, err := r.claim(key, model != nil)
	if err != nil {
		return err
	}
	r.treeModels[k] = model
	return nil
}

// RegisterStandModel adds a stand model under key.
func (r *PluginRegistry) RegisterStandModel(key string, model pluginapi.StandModel) error {
	k, err := r.claim(key, model != nil)
	if err != nil {
		return err
	}
	r.standModels[k] = model
	return nil
}

// RegisterHarvestModel adds a harvest model factory under key.
func (r *PluginRegistry) RegisterHarvestModel(key string, factory pluginapi.HarvestFactory) error {
	k, err := r.claim(key, factory != nil)
	if err != nil {
		return err
	}
	r.harvest[k] = factory
	return nil
}

// RegisterRule adds a step rule contributed by the plugin.
func (r *PluginRegistry) RegisterRule(rule domain.Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// Rules returns a copy of registered rules.
func (r *PluginRegistry) Rules() []domain.Rule {
	return append([]domain.Rule(nil), r.rules...)
}

// Keys returns every registered model key, sorted.
func (r *PluginRegistry) Keys() []string {
	keys := make([]string, 0, len(r.treeModels)+len(r.standModels)+len(r.harvest))
	for k := range r.treeModels {
		keys = append(keys, k)
	}
	for k := range r.standModels {
		keys = append(keys, k)
	}
	for k := range r.harvest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// merge moves the contributions of other into r, failing on the first key
// clash without modifying r.
func (r *PluginRegistry) merge(other *PluginRegistry) error {
	for _, k := range other.Keys() {
		if r.has(k) {
			return fmt.Errorf("model %s already registered", k)
		}
	}
	for k, m := range other.treeModels {
		r.treeModels[k] = m
	}
	for k, m := range other.standModels {
		r.standModels[k] = m
	}
	for k, f := range other.harvest {
		r.harvest[k] = f
	}
	r.rules = append(r.rules, other.rules...)
	return nil
}

// ResolveModel returns the model an operation names. Harvest factories are
// instantiated with the operation's cut method.
func (r *PluginRegistry) ResolveModel(op Operation) (Model, error) {
	k := normalizeKey(op.ModelKey)
	if m, ok := r.treeModels[k]; ok {
		return m, nil
	}
	if m, ok := r.standModels[k]; ok {
		return m, nil
	}
	if f, ok := r.harvest[k]; ok {
		model, err := f(op.CutMethod)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", k, err)
		}
		return model, nil
	}
	if s := Suggest(k, r.Keys()); s != "" {
		return nil, fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownModel, op.ModelKey, s)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownModel, op.ModelKey)
}

// Suggest returns the candidate closest to input by edit distance, or "" when
// none is close enough to be a plausible typo.
func Suggest(input string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(input), strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := len(input) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name    string
	Version string
	Models  []string
	Rules   []string
}
