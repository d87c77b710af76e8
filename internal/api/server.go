package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"wow-terminal/internal/auction"
	"wow-terminal/internal/config"
	"wow-terminal/internal/engine"
	"wow-terminal/internal/ingest"
	"wow-terminal/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the HTTP API over the store, the engine and the latest snapshot
// of every realm.
type Server struct {
	cfg        *config.Config
	store      engine.PriceStore
	names      engine.NameResolver
	ingestor   *ingest.Ingestor
	indicators *engine.Indicators
	scanner    *engine.Scanner
	valuator   *engine.Valuator

	mu         sync.RWMutex
	snapshots  map[int32]*auction.Snapshot
	realmNames map[int32]string
}

// NewServer wires the engine services to the given store and tables.
// names may be nil.
func NewServer(cfg *config.Config, store engine.PriceStore, names engine.NameResolver, tables engine.MarketTables) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	scanner := engine.NewScanner(store, tables)
	scanner.SnipeThreshold = cfg.SnipeThreshold
	scanner.ArbitrageMinSpread = cfg.ArbitrageMinSpread

	return &Server{
		cfg:   cfg,
		store: store,
		names: names,
		ingestor: &ingest.Ingestor{
			Store:       store,
			Names:       names,
			Items:       cfg.TrackedItems,
			Concurrency: cfg.IngestConcurrency,
		},
		indicators: &engine.Indicators{History: store},
		scanner:    scanner,
		valuator:   &engine.Valuator{Names: names},
		snapshots:  make(map[int32]*auction.Snapshot),
		realmNames: make(map[int32]string),
	}
}

// SetSnapshot replaces the latest snapshot of a realm.
func (s *Server) SetSnapshot(realmID int32, name string, snap *auction.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[realmID] = snap
	if name != "" {
		s.realmNames[realmID] = name
	}
}

// Ingest loads several realm snapshots at once and records their prices.
func (s *Server) Ingest(ctx context.Context, realms []ingest.RealmSnapshot) ([]ingest.SummaryRow, error) {
	for _, rs := range realms {
		s.SetSnapshot(rs.RealmID, rs.Name, rs.Snapshot)
	}
	return s.ingestor.IngestRealms(ctx, realms)
}

func (s *Server) snapshot(realmID int32) (*auction.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[realmID]
	if !ok {
		return nil, engine.ErrUnknownRealm
	}
	return snap, nil
}

// realmLabel needs s.mu held.
func (s *Server) realmLabel(realmID int32) string {
	if name, ok := s.realmNames[realmID]; ok {
		return name
	}
	return strconv.Itoa(int(realmID))
}

// snapshotsByLabel returns every loaded snapshot keyed by realm label.
func (s *Server) snapshotsByLabel() map[string]*auction.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*auction.Snapshot, len(s.snapshots))
	for id, snap := range s.snapshots {
		out[s.realmLabel(id)] = snap
	}
	return out
}

// realmIDs needs s.mu held.
func (s *Server) realmIDs() []int32 {
	ids := make([]int32, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), corsMiddleware())

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/correlation", s.handleCorrelation)
	api.GET("/items/:item/arbitrage", s.handleArbitrage)

	realm := api.Group("/realms/:realm")
	realm.POST("/snapshot", s.handleIngest)
	realm.GET("/health", s.handleHealth)
	realm.GET("/top", s.handleTopListings)
	realm.GET("/flips", s.handleVendorFlips)
	realm.GET("/farm/:route", s.handleFarm)
	realm.GET("/demand/:item", s.handleDemand)
	realm.POST("/craft", s.handleCraft)
	realm.POST("/portfolio", s.handlePortfolio)

	item := realm.Group("/items/:item")
	item.GET("/stats", s.handleStats)
	item.GET("/history", s.handleHistory)
	item.GET("/indicators", s.handleIndicators)
	item.GET("/snipes", s.handleSnipes)
	item.GET("/posting", s.handlePosting)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not found")
	})
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.L().Debug("request",
			zap.String("tag", "API"),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func writeJSON(c *gin.Context, v interface{}) {
	c.JSON(http.StatusOK, v)
}

func writeError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// pathID parses a positive int32 path parameter.
func pathID(c *gin.Context, name string) (int32, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || v <= 0 {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("invalid %s id", name))
		return 0, false
	}
	return int32(v), true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}

func queryFloat(c *gin.Context, name string, def float64) float64 {
	if v, err := strconv.ParseFloat(c.Query(name), 64); err == nil {
		return v
	}
	return def
}

// realmSnapshot resolves the :realm parameter to its latest snapshot.
func (s *Server) realmSnapshot(c *gin.Context) (int32, *auction.Snapshot, bool) {
	realmID, ok := pathID(c, "realm")
	if !ok {
		return 0, nil, false
	}
	snap, err := s.snapshot(realmID)
	if err != nil {
		writeError(c, http.StatusNotFound, fmt.Sprintf("%v %d", err, realmID))
		return 0, nil, false
	}
	return realmID, snap, true
}
