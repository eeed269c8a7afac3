package slice

// Remove returns a copy of slice without the elements in [stId, endId).
func Remove[T any](slice []T, stId int, endId int) []T {
	newSlice := make([]T, len(slice)-endId+stId)

	copy(newSlice, slice[:stId])
	copy(newSlice[stId:], slice[endId:])

	return newSlice
}

// IndexFunc returns the index of the first element matching f, or -1.
func IndexFunc[T any](slice []T, f func(T) bool) int {
	for i, v := range slice {
		if f(v) {
			return i
		}
	}
	return -1
}
