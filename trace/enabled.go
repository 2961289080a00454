//go:build !notrace

package trace

// Enabled is false when built with the notrace tag. Guarding call sites
// with it lets the compiler drop them.
const Enabled = true
