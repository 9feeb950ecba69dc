package config

import (
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tankcontrol/internal/models"
)

var DB *gorm.DB

// InitDB initializes the database connection
func InitDB(settings Settings) {
	db, err := gorm.Open(postgres.Open(settings.DatabaseDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}

	sqlDB.SetMaxIdleConns(50)           // 设置空闲连接池中的最大连接数
	sqlDB.SetMaxOpenConns(200)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置连接可复用的最大时间

	DB = db

	err = DB.AutoMigrate(
		&models.Tank{},
		&models.CalibrationRow{},
		&models.TankOperation{},
		&models.DailyProductionReport{},
		&models.LedgerRow{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
}
