// Package pluginapi is the stable contract between the simulator and species
// model plugins.
package pluginapi

import "standsim/pkg/domain"

// Registry receives plugin contributions during installation.
type Registry interface {
	RegisterTreeModel(key string, model TreeModel) error
	RegisterStandModel(key string, model StandModel) error
	RegisterHarvestModel(key string, factory HarvestFactory) error
	RegisterRule(rule domain.Rule)
}

// Plugin contributes models and rules.
type Plugin interface {
	Name() string
	Version() string
	Register(Registry) error
}

// Version of the plugin contract.
const Version = "v1"

// VersionProvider reports the contract version a host implements.
type VersionProvider interface {
	APIVersion() string
}

type defaultVersionProvider struct{}

func (defaultVersionProvider) APIVersion() string { return Version }

// GetVersionProvider returns the provider for the compiled-in contract.
func GetVersionProvider() VersionProvider { return defaultVersionProvider{} }
