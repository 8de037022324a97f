package appinit

import (
	"github.com/12Omega/blockchain-doc-sub002/internal/models/sqlmodel"
	errors "github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// SetupDatabase opens the MySQL connection behind the document registry and
// the verification log.
//
// Parameters:
//   the MySQL DSN
//
// Returns:
//   the gorm DB handle
func SetupDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "无法连接数据库")
	}

	return db, nil
}

// MigrateDatabase creates / alters the tables used by the app.
func MigrateDatabase(db *gorm.DB) error {
	if err := db.AutoMigrate(&sqlmodel.DocumentRecord{}, &sqlmodel.VerificationAttempt{}); err != nil {
		return errors.Wrap(err, "无法迁移数据库表结构")
	}

	return nil
}
