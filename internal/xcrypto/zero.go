package xcrypto

// clearBytes overwrites b with zeros. This package uses it to wipe scalars,
// group elements and the random seed behind a generated scalar; other
// packages call the builtin clear directly.
func clearBytes(b []byte) {
	clear(b)
}
