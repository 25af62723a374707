package sqlite

import (
	"errors"

	"github.com/aussiebroadwan/iworkcore/internal/identity/store/drivers/sqlite/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations brings the schema up to date using the migrations
// embedded in the binary, so a fresh identity.db needs no external files.
//
// The migrate sqlite driver wraps every migration file in its own
// transaction. A failure part way leaves the schema at the last file that
// applied and the version marked dirty, which migrate refuses to move past
// until someone fixes it by hand.
//
// Running it on an up to date schema is a no-op. It is called on every
// start and from each test store.
func (s *Store) ApplyMigrations() error {
	// 1. Create the SQLite migration driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return err
	}

	// 2. Create the iofs (embedded filesystem) source driver
	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	// 3. Create the migrate instance to run migrations
	instance, err := migrate.NewWithInstance("iofs", source, "", driver)
	if err != nil {
		return err
	}

	// 4. Apply all up migrations. ErrNoChange just means we are current
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
