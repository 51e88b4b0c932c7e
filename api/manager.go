// Package api defines the public contracts of shmkv.
package api

import "io"

// Manager is the operation set of a shared key/value region. Every
// process attached to the same region observes the same records.
type Manager interface {
	Insert(key int32, value string) error
	Update(key int32, value string) error
	Upsert(key int32, value string) error
	// Lookup returns "" for an absent key.
	Lookup(key int32) string
	Remove(key int32) error
	Contains(key int32) bool

	// BatchUpdate updates the live keys of entries and returns how many
	// were updated. It never fails as a whole.
	BatchUpdate(entries map[int32]string) int
	// BatchLookup returns every live record.
	BatchLookup() map[int32]string
	Clear() error

	Count() int
	LoadFactor() float64
	PrintStats(w io.Writer) error

	Close() error
}
