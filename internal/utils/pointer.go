package utils

// F64Ptr returns a pointer to the given float64.
func F64Ptr(v float64) *float64 {
	return &v
}

// I64Ptr returns a pointer to the given int64.
func I64Ptr(v int64) *int64 {
	return &v
}
