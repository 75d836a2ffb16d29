// Package kernel implements the branchless 8-lane evaluation kernels and
// their dense dispatch table.
//
// Every kernel consumes a fixed 8-lane window over the subject, predicate
// and object columns, computes a lane bitmask with unrolled straight-line
// code, and derives its boolean or count result from the mask without
// branching on data. Lanes beyond the run length are cancelled by a length
// mask; a run whose predicate does not match the operand predicate is
// cancelled wholesale by a gate mask. Kernels therefore run in constant
// time regardless of the data.
//
// Dispatch is a dense table indexed by the operation code. The lookup is
// bounds-masked: out-of-range codes resolve to an inert kernel and report
// not-dispatched, never a branch mispredict or a panic.
package kernel
