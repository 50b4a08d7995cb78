//go:build !unix

package internal

import "os"

// Platforms without flock only get in-process exclusion from the callers.
func tryFlock(f *os.File, exclusive bool) (bool, error) {
	return true, nil
}

func unFlock(f *os.File) error {
	return nil
}
