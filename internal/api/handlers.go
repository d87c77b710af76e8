package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"wow-terminal/internal/auction"
	"wow-terminal/internal/engine"
	"wow-terminal/internal/ingest"
	"wow-terminal/internal/logger"
	"wow-terminal/internal/money"

	"github.com/gin-gonic/gin"
)

const day = 24 * time.Hour

type statsView struct {
	engine.ItemPriceStats
	MinText string `json:"min_text"`
	AvgText string `json:"avg_text"`
	MaxText string `json:"max_text"`
}

func viewStats(st engine.ItemPriceStats) statsView {
	return statsView{
		ItemPriceStats: st,
		MinText:        money.FormatGold(st.Min),
		AvgText:        money.FormatGold(st.Avg),
		MaxText:        money.FormatGold(st.Max),
	}
}

type summaryView struct {
	ingest.SummaryRow
	Display    statsView `json:"display"`
	ChangeText string    `json:"change_text"`
}

func (s *Server) handleStatus(c *gin.Context) {
	type realmStatus struct {
		RealmID  int32  `json:"realm_id"`
		Name     string `json:"name"`
		Listings int    `json:"listings"`
		Health   string `json:"health"`
	}
	realms := []realmStatus{}
	s.mu.RLock()
	for _, id := range s.realmIDs() {
		h := engine.Health(s.snapshots[id])
		realms = append(realms, realmStatus{RealmID: id, Name: s.realmLabel(id), Listings: h.Listings, Health: h.Health})
	}
	s.mu.RUnlock()
	writeJSON(c, gin.H{
		"db_driver":     s.cfg.DBDriver,
		"tracked_items": s.cfg.TrackedItems,
		"realms":        realms,
	})
}

func (s *Server) handleIngest(c *gin.Context) {
	realmID, ok := pathID(c, "realm")
	if !ok {
		return
	}
	snap, err := auction.DecodeSnapshot(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid snapshot: "+err.Error())
		return
	}
	name := c.Query("name")
	s.SetSnapshot(realmID, name, snap)

	rows, err := s.ingestor.IngestSnapshot(c.Request.Context(), ingest.RealmSnapshot{RealmID: realmID, Name: name, Snapshot: snap})
	views := make([]summaryView, len(rows))
	for i, r := range rows {
		views[i] = summaryView{SummaryRow: r, Display: viewStats(r.Stats), ChangeText: r.ChangeText()}
	}
	resp := gin.H{
		"realm_id":  realmID,
		"listings":  len(snap.Auctions),
		"timestamp": snap.Timestamp(),
		"summary":   views,
	}
	if err != nil {
		logger.Warn("API", fmt.Sprintf("ingest realm %d: %v", realmID, err))
		resp["error"] = err.Error()
	}
	writeJSON(c, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	st := engine.AnalyzeItem(snap, itemID)
	if st == nil {
		writeError(c, http.StatusNotFound, fmt.Sprintf("no priced listings for item %d", itemID))
		return
	}
	writeJSON(c, viewStats(*st))
}

func (s *Server) handleHistory(c *gin.Context) {
	realmID, ok := pathID(c, "realm")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	days := queryInt(c, "days", 7)
	if days <= 0 {
		days = 7
	}
	points := s.store.GetPriceHistory(itemID, realmID, time.Duration(days)*day)
	writeJSON(c, gin.H{"item_id": itemID, "realm_id": realmID, "points": points})
}

func (s *Server) handleIndicators(c *gin.Context) {
	realmID, ok := pathID(c, "realm")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	ind := &engine.Indicators{History: s.store, Window: time.Duration(queryInt(c, "days", 0)) * day}
	report := ind.Report(itemID, realmID, queryInt(c, "short", 0), queryInt(c, "long", 0), queryInt(c, "period", 0))
	writeJSON(c, gin.H{"item_id": itemID, "realm_id": realmID, "indicators": report})
}

type correlationRequest struct {
	Series map[string]engine.SeriesKey `json:"series"`
	Days   int                         `json:"days"`
}

func (s *Server) handleCorrelation(c *gin.Context) {
	var req correlationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Series) < 2 {
		writeError(c, http.StatusBadRequest, "need at least two series")
		return
	}
	ind := s.indicators
	if req.Days > 0 {
		ind = &engine.Indicators{History: s.store, Window: time.Duration(req.Days) * day}
	}
	writeJSON(c, ind.Correlation(req.Series))
}

func (s *Server) handleCraft(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	recipe := auction.ParseRecipe(body)
	calc, err := s.valuator.CalculateProfit(c.Request.Context(), recipe, snap, int64(queryInt(c, "quantity", 1)))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, engine.ErrRecipeNotLoaded) || errors.Is(err, engine.ErrNoCraftedItem) {
			code = http.StatusUnprocessableEntity
		}
		writeError(c, code, err.Error())
		return
	}
	writeJSON(c, gin.H{
		"calculation":  calc,
		"verdict":      calc.Verdict(),
		"cost_text":    money.FormatGold(calc.TotalCostGold),
		"revenue_text": money.FormatGold(calc.RevenueGold),
		"profit_text":  money.FormatGold(calc.ProfitGold),
	})
}

func (s *Server) handleSnipes(c *gin.Context) {
	realmID, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	writeJSON(c, s.scanner.Snipes(snap, realmID, itemID, queryFloat(c, "threshold", 0)))
}

func (s *Server) handleVendorFlips(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	writeJSON(c, s.scanner.VendorFlips(snap))
}

func (s *Server) handleFarm(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	route := c.Param("route")
	gph := s.scanner.FarmGPH(snap, route)
	writeJSON(c, gin.H{"route": route, "gold_per_hour": gph, "text": money.FormatGold(gph)})
}

func (s *Server) handleArbitrage(c *gin.Context) {
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	writeJSON(c, s.scanner.RealmArbitrage(s.snapshotsByLabel(), itemID))
}

func (s *Server) handlePosting(c *gin.Context) {
	realmID, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	st := engine.AnalyzeItem(snap, itemID)
	if st == nil {
		writeError(c, http.StatusNotFound, fmt.Sprintf("no priced listings for item %d", itemID))
		return
	}
	vol := s.indicators.Volatility(itemID, realmID)
	price := engine.PostingPrice(*st, vol)
	writeJSON(c, gin.H{"item_id": itemID, "volatility": vol, "price": price, "text": money.FormatGold(price)})
}

func (s *Server) handleDemand(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	materialID, ok := pathID(c, "item")
	if !ok {
		return
	}
	writeJSON(c, gin.H{"material_id": materialID, "demand": s.scanner.Demand(snap, materialID)})
}

func (s *Server) handleHealth(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	writeJSON(c, engine.Health(snap))
}

func (s *Server) handlePortfolio(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	var req struct {
		Positions []engine.Position `json:"positions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v := engine.Portfolio(snap, req.Positions)
	for _, f := range []float64{v.CostGold, v.CurrentGold, v.PnLGold, v.PnLPct} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			writeError(c, http.StatusUnprocessableEntity, "portfolio value out of range")
			return
		}
	}
	writeJSON(c, gin.H{"valuation": v, "pnl_text": money.FormatGold(v.PnLGold)})
}

func (s *Server) handleTopListings(c *gin.Context) {
	_, snap, ok := s.realmSnapshot(c)
	if !ok {
		return
	}
	writeJSON(c, engine.TopListings(snap, queryInt(c, "n", 20)))
}
