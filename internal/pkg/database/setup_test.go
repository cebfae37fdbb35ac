package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{User: "docuchat", Password: "secret", Host: "db", Port: "3307", Name: "billing"}
	assert.Equal(t, "docuchat:secret@tcp(db:3307)/billing?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DSN())
}

func TestAutoMigrateCreatesBillingTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, AutoMigrate(db))

	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), "table for %T", m)
	}
	assert.True(t, db.Migrator().HasColumn(&models.Plan{}, "billing_interval"))
	assert.True(t, db.Migrator().HasIndex(&models.Subscription{}, "idx_subscriptions_external_subscription_id"))
}
