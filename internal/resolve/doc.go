// Package resolve merges independently authored package schemas into one
// conflict-free namespace.
//
// Resolution runs two Trackers, one for dense and sparse variables and one
// for swarms. Each declaration is sorted by role:
//
//   - Private lands in the result as "<package>::<name>".
//   - Provides lands under its bare name; two providers of one name conflict.
//   - Requires adds nothing but must be matched by some provider.
//   - Overridable is a fallback: dropped when the name is provided, otherwise
//     the first registering package wins, with a warning when several
//     packages compete.
//
// The only ordering that influences the result is package registration
// order, and only for Overridable fallbacks. Trackers live for one call;
// concurrent Resolve calls share nothing.
package resolve
