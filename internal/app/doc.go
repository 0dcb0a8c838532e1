// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle: load configuration,
// build and resolve packages, lay out the mesh and run the driver on every
// local rank. It is decoupled from any specific entrypoint like a CLI.
package app
