// Package storage persists uploaded avatar images somewhere the vendor can
// fetch them from.
package storage

import "context"

// Store writes an object and returns the URL it is publicly served at.
// Local stores return a site-relative URL; remote stores an absolute one.
// Empty objects are stored like any other.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Name() string
}
