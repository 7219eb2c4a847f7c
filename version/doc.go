// Package version reports build information for the vaultflow binary.
//
// Release builds stamp the version through -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/vaultflow/version.Version=0.4.0" ./cmd/vaultflow
//
// Otherwise the commit and build time come from the VCS stamp Go embeds.
package version
