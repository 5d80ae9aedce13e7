package util

import (
	"github.com/hashicorp/go-set/v3"
	"slices"
)

// SortedSlice returns the elements of s in ascending order
func SortedSlice[V interface {
	comparable
	~string
}](s *set.Set[V]) []V {
	slice := s.Slice()
	slices.Sort(slice)
	return slice
}
