// Package fuzz implements the differential fuzzing loop for SAT solvers.
//
// A run is a fixed generator mode and a half-open range of seeds. For each
// seed the loop:
//
//  1. asks an external generator for a DIMACS formula (Generator),
//  2. runs the solver under test on it (Solver),
//  3. on UNSAT, asks the trusted reference solver to confirm (Confirmer),
//  4. on SAT, optionally verifies the reported solution (SolutionVerifier).
//
// Any divergence or protocol violation stops the run immediately with a
// *Failure describing the seed, the mode and the artifacts involved, so the
// iteration can be reproduced by re-running the same (mode, seed) pair.
//
// Iterations are strictly sequential. The formula, result and log artifacts
// are fixed paths that every iteration overwrites.
package fuzz
