package util

import "golang.org/x/exp/slices"

// Contains reports whether every element of dst is present in src.
func Contains[T comparable](src []T, dst []T) bool {
	for _, v := range dst {
		if !slices.Contains(src, v) {
			return false
		}
	}
	return true
}

// Unique returns in without duplicates, keeping first occurrences.
func Unique[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// LastN returns the last n elements of in, oldest first.
func LastN[T any](in []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}
