package model

// This file contains tag set helpers.

import (
	"sort"
	"strings"
)

// TagSet is a set of tag names.
type TagSet map[string]struct{}

// NewTagSet builds a set from the given tags.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, tag := range tags {
		s[tag] = struct{}{}
	}
	return s
}

func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Apply adds gained and removes lost tags in place.
func (s TagSet) Apply(gained, lost []string) {
	for _, tag := range gained {
		s[tag] = struct{}{}
	}
	for _, tag := range lost {
		delete(s, tag)
	}
}

func (s TagSet) Clone() TagSet {
	c := make(TagSet, len(s))
	for tag := range s {
		c[tag] = struct{}{}
	}
	return c
}

// Minus returns the tags in s that are not in other, sorted.
func (s TagSet) Minus(other TagSet) []string {
	var out []string
	for tag := range s {
		if !other.Has(tag) {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

// Intersects reports whether any tag is in both sets.
func (s TagSet) Intersects(other TagSet) bool {
	for tag := range s {
		if other.Has(tag) {
			return true
		}
	}
	return false
}

// Sorted returns the tags in sorted order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// ParseTagArgs splits tags such as "foo -bar" into gained and lost; a
// leading '-' marks a removal.
func ParseTagArgs(tags []string) (gained, lost []string) {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if strings.HasPrefix(tag, "-") {
			lost = append(lost, tag[1:])
		} else {
			gained = append(gained, tag)
		}
	}
	return gained, lost
}
