package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/karimadel/borsa/internal/charts"
	"github.com/karimadel/borsa/internal/handlers"
	"github.com/karimadel/borsa/internal/interfaces"
)

// handleChartImage handles GET /api/chart/{symbol}.png?range=1M. It
// serves the PNG referenced by chart card image URLs.
func (s *Server) handleChartImage(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.ToUpper(PathParam(r, "/api/chart/", ".png"))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "1M"
	}

	ctx := r.Context()
	store := s.app.Storage.MarketStore()

	inst, err := store.GetInstrument(ctx, symbol)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "unknown symbol")
			return
		}
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Chart instrument lookup failed")
		WriteError(w, http.StatusInternalServerError, "storage error")
		return
	}

	now := time.Now().UTC()
	points, err := store.GetPriceSeries(ctx, symbol, handlers.RangeWindow(rng, now), now)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Chart price series failed")
		WriteError(w, http.StatusInternalServerError, "storage error")
		return
	}

	png, err := charts.RenderPriceChart(symbol, inst.Currency, points)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not enough price history to chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
