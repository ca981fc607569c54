package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

type Config struct {
	Port    string
	Env     string
	Store   string
	DBDSN   string
	LogFile string

	AWSRegion      string
	DynamoEndpoint string
	CarsTable      string
	BookingsTable  string
	EnquiriesTable string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	cfg := Config{
		Port:    getenv("PORT", "8080"),
		Env:     getenv("APP_ENV", "development"),
		Store:   getenv("STORE", StoreSQLite),
		DBDSN:   getenv("DB_DSN", "carmarket.db"),
		LogFile: os.Getenv("LOG_FILE"),

		AWSRegion:      getenv("AWS_REGION", "us-east-1"),
		DynamoEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
		CarsTable:      getenv("CARS_TABLE", "cars"),
		BookingsTable:  getenv("BOOKINGS_TABLE", "bookings"),
		EnquiriesTable: getenv("ENQUIRIES_TABLE", "enquiries"),
	}
	if cfg.Store != StoreSQLite && cfg.Store != StoreDynamoDB {
		log.Printf("[config] unknown STORE=%q, falling back to %s", cfg.Store, StoreSQLite)
		cfg.Store = StoreSQLite
	}

	log.Printf("[config] PORT=%s APP_ENV=%s STORE=%s DB_DSN=%s LOG_FILE=%s", cfg.Port, cfg.Env, cfg.Store, cfg.DBDSN, cfg.LogFile)
	if cfg.Store == StoreDynamoDB {
		log.Printf("[config] AWS_REGION=%s DYNAMODB_ENDPOINT=%s tables=%s,%s,%s",
			cfg.AWSRegion, cfg.DynamoEndpoint, cfg.CarsTable, cfg.BookingsTable, cfg.EnquiriesTable)
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
