// Package metadata describes a single declared variable: the role it plays in
// cross-package resolution, its flags and shape, an optional sparse id, and an
// opaque attribute payload.
//
// A Descriptor is pure data. Packages build descriptors when they declare
// their state, the resolver classifies them by Role, and blocks use the
// flags and shape of resolved descriptors to size their storage.
//
// # Roles
//
//   - None: no role declared yet. ValidateMetadata on the owning schema
//     promotes it to Provides.
//   - Private: visible only to the declaring package; resolved under the
//     mangled name "<package>::<name>".
//   - Provides: the package supplies the variable to everybody; at most one
//     package may provide a given name.
//   - Requires: the package needs the variable but does not create it.
//   - Overridable: a fallback definition used only when no package provides
//     the name.
package metadata
