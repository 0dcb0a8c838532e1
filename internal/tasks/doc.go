// Package tasks describes and runs synchronized phases of block-level work.
//
// A Collection is an ordered sequence of Regions. A Region holds one or more
// Lists that run concurrently; the Region is complete only when every List
// is, and the next Region cannot start earlier. Within a List, tasks are
// linked by opaque ID tokens returned from AddTask:
//
//	var tc tasks.Collection
//	region := tc.AddRegion(1)
//	area := region.List(0).AddTask(tasks.None, "compute_areas", computeAreas)
//	region.List(0).AddTask(area, "report", report)
//	err := tc.Execute(ctx, workers)
//
// There is no timeout. Cancellation of the parent context and task failures
// are the only ways a run ends early; both skip every task that has not
// started yet.
package tasks
