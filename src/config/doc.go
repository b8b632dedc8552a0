// Package config defines the configuration for a firefly node.
//
// Regardless of how the node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// options, the node relies on a data directory, defined by Config.DataDir,
// where it expects to find one additional configuration file:
//
//  peers.json // a JSON file containing the group roster.
package config
