package pdo

import "reflect"

// consumerKey derives a stable identity for a Consumer function value so the
// registry can recognize repeat Subscribe/Unsubscribe calls for the same
// callback. Go func values aren't comparable, so identity is taken from the
// underlying code pointer.
func consumerKey(c Consumer) uintptr {
	return reflect.ValueOf(c).Pointer()
}
