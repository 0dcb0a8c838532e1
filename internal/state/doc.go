// Package state holds package schemas: the dense fields, sparse variants,
// swarms and params one package declares.
//
// The same Schema type also represents the resolved, conflict-free global
// namespace produced by the resolve package. A resolved schema keeps no
// reference to the packages it was built from and carries no params.
//
// Every failure is an *Error whose Kind is one of the Err* sentinels, so
// callers classify failures with errors.Is.
package state
