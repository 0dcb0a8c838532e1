// Package cli turns command-line arguments into an app.Config. It owns the
// usage text and maps bad input to an ExitError carrying exit code 2.
package cli
