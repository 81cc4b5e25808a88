package crypto

// Zero wipes a buffer in place. Passwords, exported key material, and
// decrypted values are passed through here once they are no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
