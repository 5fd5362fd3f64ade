// Package software runs the n-body simulation and the splat renderer on
// the CPU.
//
// It follows the GPU path step for step: the same float32 pairwise
// gravity split into an accelerate phase and an integrate phase, and the
// same splat and tone-map arithmetic. It is the fallback when no GPU
// adapter is available and the reference the GPU path is compared against.
package software
