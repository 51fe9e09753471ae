// Command migrate applies the schema to the configured database without
// starting the server, for fresh deployments and CI databases.
package main

import (
	"log"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"voltswap/config"
	"voltswap/models"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		log.Println("Warning: no .env file, using environment variables from system")
	}

	cfg := config.Load()

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to open database:", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("migration failed:", err)
	}

	log.Println("migration completed:", cfg.DatabasePath)
}
