package domain

// Zero overwrites the given byte slice with zeros. Use it to scrub plaintext
// key material from memory once an operation no longer needs it.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
