// Package config reads service configuration from the environment,
// with optional .env discovery.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the job service settings.
type Config struct {
	Addr              string
	OutputDir         string
	DatabaseURL       string
	HistoryPath       string
	StoreCatalogPath  string
	DeliveryTimesPath string
	MainWarehouse     string
	HistoryLimit      int
}

// Load reads configuration from the environment.
func Load() Config {
	outputDir := getenv("TP_OUTPUT_DIR", "output")
	return Config{
		Addr:              getenv("TP_ADDR", ":8090"),
		OutputDir:         outputDir,
		DatabaseURL:       getenv("TP_DATABASE_URL", os.Getenv("DATABASE_URL")),
		HistoryPath:       getenv("TP_HISTORY_DB", filepath.Join(outputDir, "history.db")),
		StoreCatalogPath:  getenv("TP_STORES_CSV", filepath.Join("data", "clasificacion_tiendas.csv")),
		DeliveryTimesPath: getenv("TP_DELIVERY_CSV", filepath.Join("data", "tiempos_entrega.csv")),
		MainWarehouse:     os.Getenv("TP_MAIN_WAREHOUSE"),
		HistoryLimit:      getenvInt("TP_HISTORY_LIMIT", 50),
	}
}

// LoadDotEnv walks up from the working directory looking for a .env
// file and loads the first one found.
func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
