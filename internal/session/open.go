package session

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/grocery_web/internal/db"
)

// Open builds the store selected by driver: "memory", "sqlite" or
// "postgres". A non-empty sealKey wraps it in Sealed.
func Open(ctx context.Context, driver, dsn, sealKey string) (Store, error) {
	var st Store
	switch driver {
	case "", "memory":
		st = NewMemoryStore()
	case db.DriverSQLite, db.DriverPostgres:
		gdb, err := db.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		gs, err := NewGormStore(gdb)
		if err != nil {
			return nil, err
		}
		st = gs
	default:
		return nil, fmt.Errorf("unknown session driver %q", driver)
	}

	if sealKey == "" {
		return st, nil
	}
	return NewSealed(st, sealKey)
}
