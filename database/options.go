package database

import (
	"github.com/safing/dbdriver/database/query"
)

// Options select and order the records returned by Objects and delivered to
// subscriptions.
type Options struct {
	// Filter selects records by their JSON representation. Nil matches all.
	Filter query.Condition

	// SortBy orders the results. Later keys break ties of earlier keys.
	// Without sort keys, results are in primary key order.
	SortBy []SortKey

	// NotificationName additionally refreshes subscriptions whenever an
	// event with this name is triggered on the event bus.
	NotificationName string
}

// SortKey is a JSON path to sort by.
type SortKey struct {
	KeyPath   string
	Ascending bool
}

// Ascending returns a sort key that sorts by keyPath in ascending order.
func Ascending(keyPath string) SortKey {
	return SortKey{KeyPath: keyPath, Ascending: true}
}

// Descending returns a sort key that sorts by keyPath in descending order.
func Descending(keyPath string) SortKey {
	return SortKey{KeyPath: keyPath}
}

// Where returns options with the given filter.
func Where(filter query.Condition, sortBy ...SortKey) *Options {
	return &Options{
		Filter: filter,
		SortBy: sortBy,
	}
}
