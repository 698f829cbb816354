package database

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pixgrove/pixgrove/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	instance *gorm.DB
	once     sync.Once
)

func GetDB() *gorm.DB {
	once.Do(func() {
		instance = connectDB()
	})

	return instance
}

func connectDB() *gorm.DB {
	dsn := config.Config("DATABASE_URL")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
		panic(err)
	}

	// Get the underlying SQL DB object for connection pooling
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB object: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	fmt.Println("Successfully connected to Postgres database!")
	return db
}

// MigrateModels runs auto migration for your models
func MigrateModels(models ...interface{}) error {
	db := GetDB()

	// Extensions must exist before the vector column and trigram
	// functions referenced by the models/migrations below.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return err
	}

	if err := db.AutoMigrate(models...); err != nil {
		return err
	}

	return migrateSearchFunctions(db)
}

// migrateSearchFunctions installs the fuzzy-search stored functions used by
// the text-only search path. Matching is trigram similarity across the AI
// description and tags, strongest match first.
func migrateSearchFunctions(db *gorm.DB) error {
	const searchFn = `
CREATE OR REPLACE FUNCTION search_images_fuzzy(p_user_id text, p_query text, p_limit int, p_offset int)
RETURNS TABLE(image_id bigint, rank real) AS $$
	SELECT i.id,
		GREATEST(
			similarity(coalesce(m.description, ''), p_query),
			coalesce((SELECT max(similarity(t, p_query)) FROM unnest(m.tags) AS t), 0)
		)::real AS rank
	FROM images i
	JOIN image_metadata m ON m.image_id = i.id
	WHERE i.user_id = p_user_id
		AND i.deleted_at IS NULL
		AND (
			coalesce(m.description, '') % p_query
			OR EXISTS (SELECT 1 FROM unnest(m.tags) AS t WHERE t % p_query)
		)
	ORDER BY rank DESC, i.uploaded_at DESC
	LIMIT p_limit OFFSET p_offset;
$$ LANGUAGE sql STABLE;`

	const countFn = `
CREATE OR REPLACE FUNCTION search_images_fuzzy_count(p_user_id text, p_query text)
RETURNS bigint AS $$
	SELECT count(*)
	FROM images i
	JOIN image_metadata m ON m.image_id = i.id
	WHERE i.user_id = p_user_id
		AND i.deleted_at IS NULL
		AND (
			coalesce(m.description, '') % p_query
			OR EXISTS (SELECT 1 FROM unnest(m.tags) AS t WHERE t % p_query)
		);
$$ LANGUAGE sql STABLE;`

	if err := db.Exec(searchFn).Error; err != nil {
		return err
	}

	return db.Exec(countFn).Error
}

func CloseDB() error {
	if instance != nil {
		sqlDB, err := instance.DB()
		if err != nil {
			return err
		}

		return sqlDB.Close()
	}

	return nil
}
