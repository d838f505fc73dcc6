// Package sqlite selects the SQLite driver for the build: the pure Go
// modernc.org/sqlite by default, mattn/go-sqlite3 when built with
// -tags cgo_sqlite and CGO enabled. The two register different driver
// names, so callers open databases through this package instead of
// calling sql.Open with a literal name.
package sqlite

import (
	"database/sql"
	"fmt"
)

// DriverName returns the driver name the active build registered.
func DriverName() string {
	return driverName
}

// DriverType returns "purego" or "cgo".
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO driver is active.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database through the active driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// MustOpen opens a SQLite database and panics on error. For tests and
// initialization paths where failure is unrecoverable.
func MustOpen(dataSourceName string) *sql.DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}

// Info describes the active driver, for version output.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns the active driver's description.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
