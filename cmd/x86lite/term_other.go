//go:build !linux && !darwin

package main

// Line buffered input only; keys are read after Enter.
func enterRawTerm() {}

func exitRawTerm() {}
