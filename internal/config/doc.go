// Package config holds the runtime configuration of tgsimilar.
//
// Values are layered: NewConfig defaults, then the optional YAML file
// (.tgsimilar in the current or home directory), then environment variables
// (a .env file is loaded first), then command line flags applied by the CLI.
package config
