//go:build !linux && !darwin

package crypto

import "errors"

var errNoMlock = errors.New("crypto: mlock unsupported on this platform")

func lockMemory([]byte) error   { return errNoMlock }
func unlockMemory([]byte) error { return nil }
