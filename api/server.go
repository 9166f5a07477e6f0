// Package api is the thin HTTP adapter over the simulation engine. It only
// translates requests and responses; every rule lives in the sim package.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rustyeddy/simex/market"
	"github.com/rustyeddy/simex/sim"
)

// Store is the subset of the state store the server drives directly.
type Store interface {
	Save(sim.Snapshot) error
	Clear() error
}

type Server struct {
	engine *sim.Engine
	source market.Source
	store  Store
	logger *zap.Logger
	router *mux.Router
}

func NewServer(engine *sim.Engine, source market.Source, store Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		source: source,
		store:  store,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/advance", s.handleAdvance).Methods(http.MethodPost)
	s.router.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	s.router.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	s.router.HandleFunc("/positions", s.handleListPositions).Methods(http.MethodGet)
	s.router.HandleFunc("/account", s.handleAccount).Methods(http.MethodGet)
	s.router.HandleFunc("/time", s.handleTime).Methods(http.MethodGet)
	s.router.HandleFunc("/symbols", s.handleSymbols).Methods(http.MethodGet)
	s.router.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type advanceRequest struct {
	Steps int `json:"steps"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, sim.ErrInvalidArgument, "malformed body")
		return
	}

	ts, err := s.engine.Advance(req.Steps)
	if err != nil {
		s.writeError(w, err, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"time": ts.Format(time.RFC3339),
	})
}

type orderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	Leverage   int     `json:"leverage,omitempty"`
	TakeProfit float64 `json:"takeProfit,omitempty"`
	StopLoss   float64 `json:"stopLoss,omitempty"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, sim.ErrInvalidArgument, "malformed body")
		return
	}

	side, err := sim.ParseSide(req.Side)
	if err != nil {
		s.writeError(w, err, err.Error())
		return
	}

	order, err := s.engine.SubmitOrder(sim.OrderRequest{
		Symbol:     req.Symbol,
		Side:       side,
		Size:       req.Size,
		Leverage:   req.Leverage,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
	})
	if err != nil {
		// Rejected orders still carry a record; include it in the reply.
		if order.Status == sim.StatusRejected {
			s.writeJSON(w, statusFor(err), map[string]any{
				"code":    codeFor(err),
				"message": err.Error(),
				"order":   orderDTO(order),
			})
			return
		}
		s.writeError(w, err, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, orderDTO(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, sim.ErrInvalidArgument, "bad limit")
			return
		}
		limit = n
	}

	orders := s.engine.Orders(symbol, limit)
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderDTO(o))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, sim.ErrInvalidArgument, "bad order id")
		return
	}

	order, err := s.engine.Order(id)
	if err != nil {
		s.writeError(w, err, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, orderDTO(order))
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions := s.engine.Positions()
	out := make([]map[string]any, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionDTO(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Account())
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"time": s.engine.CurrentTime().Format(time.RFC3339),
		"step": s.engine.Step().String(),
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Symbols())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			s.logger.Warn("clear persisted state", zap.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func orderDTO(o sim.Order) map[string]any {
	dto := map[string]any{
		"id":       o.ID,
		"symbol":   o.Symbol,
		"side":     o.Side.String(),
		"size":     o.Size,
		"leverage": o.Leverage,
		"status":   o.Status.String(),
		"created":  o.Created.Format(time.RFC3339),
	}
	if o.TakeProfit > 0 {
		dto["takeProfit"] = o.TakeProfit
	}
	if o.StopLoss > 0 {
		dto["stopLoss"] = o.StopLoss
	}
	if o.Status == sim.StatusFilled {
		dto["fillPrice"] = o.FillPrice
		dto["fillTime"] = o.FillTime.Format(time.RFC3339)
		dto["commission"] = o.Commission
	}
	if o.Reject != "" {
		dto["reject"] = o.Reject
	}
	return dto
}

func positionDTO(p sim.Position) map[string]any {
	side := "LONG"
	if p.Side == sim.Sell {
		side = "SHORT"
	}
	dto := map[string]any{
		"symbol":       p.Symbol,
		"side":         side,
		"size":         p.Size,
		"entryPrice":   p.EntryPrice,
		"markPrice":    p.MarkPrice,
		"leverage":     p.Leverage,
		"margin":       p.RequiredMargin(),
		"unrealizedPl": p.UnrealizedPL(),
		"openTime":     p.OpenTime.Format(time.RFC3339),
	}
	if p.TakeProfit > 0 {
		dto["takeProfit"] = p.TakeProfit
	}
	if p.StopLoss > 0 {
		dto["stopLoss"] = p.StopLoss
	}
	return dto
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, sim.ErrNoMarketData), errors.Is(err, sim.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrInsufficientMargin):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, sim.ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, sim.ErrNoMarketData):
		return "NO_MARKET_DATA"
	case errors.Is(err, sim.ErrInsufficientMargin):
		return "INSUFFICIENT_MARGIN"
	case errors.Is(err, sim.ErrNotFound):
		return "NOT_FOUND"
	}
	return "INTERNAL"
}

func (s *Server) writeError(w http.ResponseWriter, err error, msg string) {
	s.writeJSON(w, statusFor(err), map[string]string{
		"code":    codeFor(err),
		"message": msg,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}
