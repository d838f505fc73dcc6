//go:build cgo_sqlite

// mattn/go-sqlite3 build, selected with -tags cgo_sqlite. Needs
// CGO_ENABLED=1.
package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)
