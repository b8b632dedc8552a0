package common

import (
	"sort"
)

// Median gets the median number in a slice of numbers.
func Median(input []int64) (median int64) {
	s := make([]int64, len(input))
	copy(s, input)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })

	// For even counts we average the two middle numbers, for odd counts we
	// take the middle number.
	l := len(s)
	if l == 0 {
		return 0
	} else if l%2 == 0 {
		mid := l/2 - 1
		median = (s[mid] + s[mid+1]) / 2
	} else {
		median = s[l/2]
	}

	return median
}

// Spread returns the difference between the largest and smallest number in a
// slice of numbers.
func Spread(input []int64) int64 {
	if len(input) == 0 {
		return 0
	}

	min, max := input[0], input[0]
	for _, v := range input[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return max - min
}
