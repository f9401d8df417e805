// Package dwbranch implements the branching core of a Dantzig-Wolfe
// branch-and-price solver: the rules that decide how to split a search
// node (strong branching with pricing, Vanderbeck generic branching,
// reliability pseudocost branching with probing) and the node-local
// constraint stack that carries a branching decision across B&B node
// activation/deactivation.
//
// The LP solver, the column-generation pricer, and the rest of the host
// solver are external collaborators, represented here only by the Host
// interface (host.go) and its narrower sub-interfaces. internal/fakehost
// provides an in-memory implementation of that interface for tests and
// for cmd/branchdemo; production use wires a real solver against the same
// interface.
//
// Concurrency: the package assumes the single-threaded cooperative
// scheduling model of a B&B decision callback. The one exception is
// StrongBranchingEngine's phase-0 scoring fan-out, which touches no
// probing state and is safe to parallelize across internal/workerpool.
package dwbranch
