package sqlite

import (
	// Registers the "sqlite3" database/sql driver. go-sqlite3 runs SQLite
	// compiled to WASM under wazero, so the portal binary stays cgo-free —
	// a requirement on the fixed-function devices this daemon targets.
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// driverName is the database/sql driver registered by the imports above.
const driverName = "sqlite3"
