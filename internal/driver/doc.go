// Package driver runs one execution cycle over the blocks a rank owns.
//
// A Driver moves linearly through Setup, GraphBuilt, GraphExecuted, Reduced
// and Reported. It either runs the Problem's task collection and then reads
// every block's result back from its execution space, or asks the Problem
// for the whole local result in a single pass. The local sums of all ranks
// are combined with exactly one reduction to the root, which reports the
// value and its error against the Problem's reference.
package driver
