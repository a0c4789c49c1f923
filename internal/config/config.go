// Package config reads server settings from the environment and an optional .env file
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Config holds every setting the server reads at startup
type Config struct {
	Port          int
	Storage       string
	StatePath     string
	DatabaseURL   string
	AssetDir      string
	ExportDir     string
	FontDir       string
	LogoRef       string
	FrameInterval time.Duration
	BgRemovalURL  string
	BgRemovalKey  string
	// ImageRoots are the directories file image references may read from
	ImageRoots   []string
	RemoteImages bool
}

// Load reads .env (when present) and then the process environment
func Load() Config {
	if os.Getenv("ENV") != "production" {
		if err := godotenv.Load(); err == nil {
			log.Printf("📄 Loaded environment from .env")
		}
	}

	return Config{
		Port:          envInt("SERVER_PORT", 12212),
		Storage:       strings.ToLower(envString("KARCARD_STORAGE", StorageFile)),
		StatePath:     envString("KARCARD_STATE_PATH", "karcard_state.json"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AssetDir:      envString("KARCARD_ASSET_DIR", "assets"),
		ExportDir:     envString("KARCARD_EXPORT_DIR", "exports"),
		FontDir:       os.Getenv("KARCARD_FONT_DIR"),
		LogoRef:       os.Getenv("KARCARD_LOGO"),
		FrameInterval: time.Duration(envInt("KARCARD_FRAME_MS", 16)) * time.Millisecond,
		BgRemovalURL:  os.Getenv("BG_REMOVAL_URL"),
		BgRemovalKey:  os.Getenv("BG_REMOVAL_API_KEY"),
		ImageRoots:    envList("KARCARD_IMAGE_ROOTS"),
		RemoteImages:  envBool("KARCARD_ALLOW_REMOTE_IMAGES"),
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("⚠️  Ignoring invalid %s=%q", key, v)
		return false
	}
	return b
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("⚠️  Ignoring invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
