//go:build notrace

package trace

const Enabled = false
