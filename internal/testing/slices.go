package testing

// Reverse returns reversed copy of provided items
func Reverse[T any](items []T) []T {
	reversed := make([]T, len(items))
	copy(reversed, items)

	for i := len(reversed)/2 - 1; i >= 0; i-- {
		opp := len(reversed) - 1 - i
		reversed[i], reversed[opp] = reversed[opp], reversed[i]
	}

	return reversed
}

// Pages splits items into consecutive chunks of size items, the last chunk may be shorter
// e.g. [0, 1, 2, 3, 4] with size 2 -> [[0,1], [2,3], [4]]
func Pages[T any](items []T, size int) [][]T {
	pages := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		pages = append(pages, items[i:end])
	}

	return pages
}
