// Package plugins hosts the species model plugins. It contains no runtime code
// itself; this file anchors the architecture test that keeps every plugin on
// the public pkg/domain and pkg/pluginapi contracts.
//
// Each subpackage exposes a Plugin value that the command line installs into
// the simulator service:
//
//	psylvestris  individual-tree model for Pinus sylvestris (SIM)
//	sylves       SILVES whole-stand thinning model
package plugins
