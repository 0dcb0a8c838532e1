// Package registry connects compiled package modules with the package
// declarations found in configuration.
//
// A Module is the Go side of a package: it builds the package schema from
// the configured params and may contribute the driver Problem. Packages
// that exist only in configuration are built purely from their field,
// sparse and swarm declarations. Build merges both into the ordered
// state.Packages consumed by the resolver.
package registry
