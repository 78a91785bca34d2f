// Package ranking computes sibling order, leadership and predecessor for a
// candidate from its node name and the current set of children.
//
// Children are ordered by the store-assigned decimal sequence suffix. For
// stores that zero-pad suffixes to a fixed width this is the same order as a
// plain lexicographic sort; comparing the numeric value keeps the order correct
// for stores that do not pad. Names without a numeric suffix sort after all
// sequenced names, by name.
package ranking
