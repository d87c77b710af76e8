package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"wow-terminal/internal/api"
	"wow-terminal/internal/auction"
	"wow-terminal/internal/config"
	"wow-terminal/internal/db"
	"wow-terminal/internal/engine"
	"wow-terminal/internal/ingest"
	"wow-terminal/internal/logger"
	"wow-terminal/internal/names"
)

var version = "dev"

// store is what main needs from either backend.
type store interface {
	engine.PriceStore
	names.Store
	Close() error
}

// snapshotFlags collects -snapshot realm[:name]=path values.
type snapshotFlags []string

func (f *snapshotFlags) String() string     { return strings.Join(*f, ",") }
func (f *snapshotFlags) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	tablesFile := flag.String("tables", "", "tables file (overrides TABLES_FILE)")
	var snapshots snapshotFlags
	flag.Var(&snapshots, "snapshot", "ingest a snapshot file at startup: realm[:name]=path (repeatable)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *tablesFile != "" {
		cfg.TablesFile = *tablesFile
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	logger.Banner(version)

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open %s store: %v", cfg.DBDriver, err))
		os.Exit(1)
	}
	defer st.Close()

	tables, err := config.LoadTables(cfg.TablesFile)
	if err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := names.New(st, names.StaticSource(tables.ItemNames))
	if len(cfg.TrackedItems) > 0 {
		resolver.Prefetch(ctx, cfg.TrackedItems)
	}
	srv := api.NewServer(cfg, st, resolver, tables.Market)

	if len(snapshots) > 0 {
		realms, err := readSnapshots(snapshots)
		if err != nil {
			logger.Error("INGEST", err.Error())
			os.Exit(1)
		}
		rows, err := srv.Ingest(ctx, realms)
		if err != nil {
			logger.Warn("INGEST", err.Error())
		}
		logger.Section("Startup ingest")
		logger.Stats("realms", int64(len(realms)))
		logger.Stats("items stored", int64(len(rows)))
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Server(addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
	logger.Info("Server", "Stopped")
}

func openStore(cfg *config.Config) (store, error) {
	if cfg.DBDriver == config.DriverMySQL {
		gs, err := db.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return gs, nil
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if cfg.RetentionDays > 0 {
		database.PruneBefore(time.Now().AddDate(0, 0, -cfg.RetentionDays).Unix())
	}
	logger.Stats("stored prices", database.CountPrices())
	return database, nil
}

// readSnapshots parses realm[:name]=path arguments and loads each file.
func readSnapshots(args []string) ([]ingest.RealmSnapshot, error) {
	realms := make([]ingest.RealmSnapshot, 0, len(args))
	for _, arg := range args {
		realm, path, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("snapshot %q: want realm[:name]=path", arg)
		}
		idText, name, _ := strings.Cut(realm, ":")
		id, err := strconv.ParseInt(idText, 10, 32)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("snapshot %q: invalid realm id", arg)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot %q: %w", arg, err)
		}
		snap, err := auction.ParseSnapshot(b)
		if err != nil {
			return nil, fmt.Errorf("snapshot %q: %w", arg, err)
		}
		realms = append(realms, ingest.RealmSnapshot{RealmID: int32(id), Name: name, Snapshot: snap})
	}
	return realms, nil
}
