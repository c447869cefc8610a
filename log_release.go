//go:build !debug

package gorough

const debug = false
