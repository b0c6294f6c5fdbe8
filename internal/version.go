// Package internal holds build metadata.
package internal

// Version is the build version, set at build time with -ldflags.
var Version = "dev"
