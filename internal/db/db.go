// Package db opens the gorm handle shared by the sql session backend and
// the leads inbox.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens a database handle for the configured driver. The sqlite
// driver is the zero-setup default; mysql is for shared deployments.
func Connect(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "", "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}
