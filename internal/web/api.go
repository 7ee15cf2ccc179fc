package web

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/internal/services/marketdata"
)

type selectRequest struct {
	Pair    string `json:"pair"`
	Account string `json:"account"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.market.Snapshot())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}

	pair, err := domain.ParsePair(req.Pair)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	account := req.Account
	if account == "" {
		account = s.defaultAccount
	}

	if err := s.market.Select(r.Context(), pair, account); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, marketdata.ErrInvalidPair) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.market.Snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.market.Clear()
	s.writeJSON(w, http.StatusOK, s.market.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.market.Refresh(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, marketdata.ErrNoSelection) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.market.Snapshot())
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	s.market.SetVisible(req.Visible)
	s.writeJSON(w, http.StatusOK, s.market.Snapshot())
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	if s.poolQuery == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("pool queries not available"))
		return
	}
	pair, ok := s.pairParam(w, r)
	if !ok {
		return
	}

	snapshot, err := s.poolQuery.Pool(r.Context(), pair)
	if err != nil {
		s.l.Warn("pool query failed", zap.String("pair", pair.String()), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleMarketTrades reconciles trades of every trader from the issuer's
// history. The issuer defaults to the issuer of the quote, then of the base.
func (s *Server) handleMarketTrades(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("market trades not available"))
		return
	}
	pair, ok := s.pairParam(w, r)
	if !ok {
		return
	}

	issuer := r.URL.Query().Get("issuer")
	if issuer == "" {
		issuer = pair.Quote.Issuer
	}
	if issuer == "" {
		issuer = pair.Base.Issuer
	}

	trades, err := s.trades.MarketTrades(r.Context(), issuer, pair)
	if err != nil {
		s.l.Warn("market trades query failed", zap.String("pair", pair.String()), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	if trades == nil {
		trades = []domain.Fill{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) pairParam(w http.ResponseWriter, r *http.Request) (domain.Pair, bool) {
	pair, err := domain.ParsePair(r.URL.Query().Get("pair"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return domain.Pair{}, false
	}
	return pair, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Debug("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
