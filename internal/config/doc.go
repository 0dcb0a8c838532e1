// Package config defines the format-agnostic run configuration: the mesh,
// driver and parallel settings and the variable declarations of every
// package, along with the Loader interface implemented by concrete formats.
//
// Concrete implementations, such as the HCL loader, live in separate
// packages.
package config
