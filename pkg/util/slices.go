package util

import "golang.org/x/exp/slices"

func InPlaceFilter[T any](s *[]T, p func(T) bool) {
	i := 0
	for _, e := range *s {
		if p(e) {
			(*s)[i] = e
			i++
		}
	}
	*s = (*s)[:i]
}

func ContainsString(s []string, str string) bool {
	return slices.Contains(s, str)
}
