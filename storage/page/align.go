package page

// AlignOffset returns the closest multiple of align that is >= length.
// align must be a power of 2.
func AlignOffset(length int, align int) int {
	return (length + align - 1) &^ (align - 1)
}

// AlignOffsetDown is similar to AlignOffset but finds the closest multiple of
// align that is <= length. align must be a power of 2.
func AlignOffsetDown(length int, align int) int {
	return length &^ (align - 1)
}
