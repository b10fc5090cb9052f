package fmp4

// Mdat wraps a sample's encoded payload verbatim: no internal structure
// beyond the box header.
func Mdat(payload []byte) []byte {
	return box("mdat", payload)
}
