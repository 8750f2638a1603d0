package caldav

import "unicode/utf16"

// Fingerprint folds an ETag into a 32-bit rolling hash (h = h*31 + c over
// UTF-16 code units, wrapping). It is cheap to store and compare, not
// collision free. The empty tag hashes to 0.
func Fingerprint(etag string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(etag)) {
		h = h*31 + int32(c)
	}
	return h
}
