package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/karcash/karcard/internal/api"
	"github.com/karcash/karcard/internal/assets"
	"github.com/karcash/karcard/internal/bgremoval"
	"github.com/karcash/karcard/internal/config"
	"github.com/karcash/karcard/internal/renderer"
	"github.com/karcash/karcard/internal/storage"
	"github.com/karcash/karcard/internal/store"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	cfg := config.Load()
	port := getPort(cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStorage()

	// Restores the persisted state, or starts from defaults
	editor := store.New(ctx, st)

	registry, err := assets.NewRegistry(cfg.AssetDir)
	if err != nil {
		log.Fatalf("Failed to create asset registry: %v", err)
	}
	// Client refs reach only the registry, data URIs, the configured roots
	// and the logo
	fetcher := assets.NewFetcher(registry,
		assets.WithRoots(cfg.ImageRoots...),
		assets.WithRemote(cfg.RemoteImages),
		assets.WithRefs(cfg.LogoRef),
	)

	engine := renderer.New(renderer.Options{
		Fonts:         renderer.NewFonts(cfg.FontDir),
		Loader:        fetcher,
		LogoRef:       cfg.LogoRef,
		FrameInterval: cfg.FrameInterval,
	})

	// Every committed snapshot schedules a render pass
	editor.Subscribe(func(snap store.Snapshot) {
		engine.Invalidate(renderer.SnapshotFrom(snap))
	})
	engine.Invalidate(renderer.SnapshotFrom(editor.Snapshot()))

	engine.OnRendered(func(info renderer.PassInfo) {
		if info.Pass == 1 {
			log.Printf("🖼️  First pass rendered (%s %dx%d in %s)", info.Format, info.Width, info.Height, info.Duration.Round(time.Millisecond))
		}
	})

	go engine.Run(ctx)

	if cfg.LogoRef != "" {
		go func() {
			preloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := engine.Cache().Preload(preloadCtx, cfg.LogoRef); err != nil {
				log.Printf("⚠️  Logo not available: %v", err)
			}
		}()
	}

	// Create API server
	server := api.NewServer(api.Deps{
		Store:     editor,
		Engine:    engine,
		Assets:    registry,
		Images:    fetcher,
		Remover:   bgremoval.NewHTTPRemover(cfg.BgRemovalURL, cfg.BgRemovalKey),
		ExportDir: cfg.ExportDir,
	})

	// Start server in goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("0.0.0.0:%s", port)
		log.Printf("🚀 KarCard %s starting API server on %s", Version, addr)
		if err := server.Run(addr); err != nil {
			serverErrChan <- err
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		log.Fatalf("Server error: %v", err)
	case <-sigChan:
		log.Println("🛑 Shutting down...")
	}
}

// openStorage picks the persistence backend from the config
func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
		pg, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("💾 Persisting state in postgres")
		return pg, func() { pg.Close() }, nil

	case config.StorageFile:
		f, err := storage.NewFile(cfg.StatePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("💾 Persisting state in %s", cfg.StatePath)
		return f, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage)
	}
}

// getPort lets --port override the configured port
func getPort(configured int) string {
	for i, arg := range os.Args {
		if arg == "--port" && i+1 < len(os.Args) {
			if _, err := strconv.Atoi(os.Args[i+1]); err == nil {
				return os.Args[i+1]
			}
			log.Printf("⚠️  Ignoring invalid --port %q", os.Args[i+1])
		}
	}

	return strconv.Itoa(configured)
}
