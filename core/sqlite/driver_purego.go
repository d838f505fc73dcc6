//go:build !cgo_sqlite

// Default build: the pure Go driver, no CGO required.
package sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)
