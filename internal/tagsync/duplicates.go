package tagsync

// Duplicates returns every element of values that repeats an earlier
// occurrence, in input order. The first occurrence of each value is never
// included; every later occurrence is.
func Duplicates[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	var dups []T
	for _, v := range values {
		if _, ok := seen[v]; ok {
			dups = append(dups, v)
			continue
		}
		seen[v] = struct{}{}
	}
	return dups
}

// DuplicatesBy is Duplicates over a derived key: values whose key repeats an
// earlier value's key are returned, in input order.
func DuplicatesBy[T any, K comparable](values []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(values))
	var dups []T
	for _, v := range values {
		k := key(v)
		if _, ok := seen[k]; ok {
			dups = append(dups, v)
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}
