package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/vigilspace/vigil/internal/countries"
	"github.com/vigilspace/vigil/internal/model"
	"github.com/vigilspace/vigil/internal/store/memory"
	"github.com/vigilspace/vigil/pkg/core"
)

// createCandle inserts a single candle. Note and country code are always
// empty at insert time; annotation arrives through a later PATCH.
func (s *Server) createCandle(w http.ResponseWriter, r *http.Request) {
	var row model.Candle
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		s.Metrics.count("create", http.StatusBadRequest)
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	candle := model.ToCore(row)
	candle.ID = 0
	candle.Note = ""
	candle.CountryCode = ""
	if candle.Style == "" {
		candle.Style = core.StyleRegular
	}
	if !core.ValidStyle(candle.Style) {
		s.Metrics.count("create", http.StatusBadRequest)
		http.Error(w, "unknown style", http.StatusBadRequest)
		return
	}
	if candle.Pos.X < 0 || candle.Pos.Y < 0 {
		s.Metrics.count("create", http.StatusBadRequest)
		http.Error(w, "position out of range", http.StatusBadRequest)
		return
	}

	if err := s.Store.Create(r.Context(), &candle); err != nil {
		s.Log.Error().Err(err).Msg("create failed")
		s.Metrics.count("create", http.StatusInternalServerError)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	s.Log.Info().Uint("id", candle.ID).
		Float64("x", candle.Pos.X).Float64("y", candle.Pos.Y).
		Msg("candle created")
	s.Metrics.count("create", http.StatusCreated)
	if n, err := s.Store.Count(r.Context()); err == nil {
		s.Metrics.setTotal(n)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(model.FromCore(candle))
}

type updateReq struct {
	Note        *string `json:"note"`
	CountryCode *string `json:"country_code"`
}

func (s *Server) updateCandle(w http.ResponseWriter, r *http.Request) {
	id64, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.Metrics.count("update", http.StatusBadRequest)
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Metrics.count("update", http.StatusBadRequest)
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	if req.Note != nil && s.Config.MaxNoteLength > 0 && len([]rune(*req.Note)) > s.Config.MaxNoteLength {
		s.Metrics.count("update", http.StatusBadRequest)
		http.Error(w, "note too long", http.StatusBadRequest)
		return
	}
	if req.CountryCode != nil {
		normalized, err := countries.Normalize(*req.CountryCode)
		if err != nil {
			s.Metrics.count("update", http.StatusBadRequest)
			http.Error(w, "unknown country code", http.StatusBadRequest)
			return
		}
		req.CountryCode = &normalized
	}

	patch := core.CandlePatch{Note: req.Note, CountryCode: req.CountryCode}
	if err := s.Store.Update(r.Context(), uint(id64), patch); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, memory.ErrNotFound) {
			s.Metrics.count("update", http.StatusNotFound)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.Log.Error().Err(err).Uint64("id", id64).Msg("update failed")
		s.Metrics.count("update", http.StatusInternalServerError)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	s.Metrics.count("update", http.StatusOK)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listCandles(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			s.Metrics.count("list", http.StatusBadRequest)
			http.Error(w, "invalid since (RFC3339)", http.StatusBadRequest)
			return
		}
		since = t
	}

	candles, err := s.Store.List(r.Context(), since)
	if err != nil {
		s.Log.Error().Err(err).Msg("list failed")
		s.Metrics.count("list", http.StatusInternalServerError)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	rows := make([]model.Candle, len(candles))
	for i, c := range candles {
		rows[i] = model.FromCore(c)
	}

	s.Metrics.count("list", http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (s *Server) countCandles(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.Count(r.Context())
	if err != nil {
		s.Log.Error().Err(err).Msg("count failed")
		s.Metrics.count("count", http.StatusInternalServerError)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	s.Metrics.count("count", http.StatusOK)
	s.Metrics.setTotal(n)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"count": n})
}
