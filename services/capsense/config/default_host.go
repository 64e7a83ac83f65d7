//go:build !(rp2040 || rp2350)

package config

// DefaultBoard is the embedded board used when none is named.
const DefaultBoard = "sim"
