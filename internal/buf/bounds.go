// Package buf contains overflow-safe arithmetic for ring geometry.
// Slot counts and buffer capacities arrive from flags or caller-supplied
// options and must never silently wrap when combined into byte sizes.
package buf

import "math"

// AddChecked adds a and b, returning ok = false when the result would
// overflow int. Both operands must be non-negative.
func AddChecked(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a > math.MaxInt-b {
		return 0, false
	}
	return a + b, true
}

// MulChecked multiplies a and b, returning ok = false when the result would
// overflow int. Both operands must be non-negative. This is the check for
// slots * itemSize calculations before sizing a ring file.
func MulChecked(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}
