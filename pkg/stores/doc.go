// Package stores persists deployment history in SQLite.
package stores
