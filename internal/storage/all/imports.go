// Package all wires every built-in storage backend into the factory.
//
// It exists purely for side effects: a blank import runs each backend's init,
// which registers its factory and DDL dialect with the storage package. The
// CLI imports this once; everything else depends only on the storage
// abstraction.
package all

import (
	_ "crashdw/internal/storage/mssql"
	_ "crashdw/internal/storage/mysql"
	_ "crashdw/internal/storage/postgres"
	_ "crashdw/internal/storage/sqlite"
)
