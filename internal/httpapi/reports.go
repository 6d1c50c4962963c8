package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"finassist/internal/core"
	"finassist/internal/narrative"
)

// Report handlers answer from the aggregation engine, which degrades to zero
// values on storage trouble. A malformed query is the only way to get a
// non-200 from these endpoints.

func (s *Server) handleBalanceReport(w http.ResponseWriter, r *http.Request) {
	s.serveCachedReport(w, r, "balance", func() any {
		type balanceReport struct {
			TotalBalance float64 `json:"total_balance"`
		}
		return balanceReport{TotalBalance: s.engine.CurrentTotalBalance(r.Context())}
	})
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	p, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("monthly:%d", p.Key())

	s.serveCachedReport(w, r, key, func() any {
		type monthlyReport struct {
			Year     int                `json:"year"`
			Month    int                `json:"month"`
			Totals   core.MonthlyTotals `json:"totals"`
			NetWorth float64            `json:"net_worth"`
		}
		return monthlyReport{
			Year:     p.Year,
			Month:    p.Month,
			Totals:   s.engine.MonthlyTotals(r.Context(), p),
			NetWorth: s.engine.NetWorth(r.Context(), p),
		}
	})
}

func (s *Server) handleDeltaReport(w http.ResponseWriter, r *http.Request) {
	p, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("delta:%d", p.Key())

	s.serveCachedReport(w, r, key, func() any {
		return s.engine.MonthOverMonthDelta(r.Context(), p)
	})
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	year, ok := queryYear(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("yearly:%d", year)

	s.serveCachedReport(w, r, key, func() any {
		return s.engine.YearlySummary(r.Context(), year)
	})
}

func (s *Server) handleAnomalyReport(w http.ResponseWriter, r *http.Request) {
	p, ok := queryPeriod(w, r)
	if !ok {
		return
	}

	threshold := s.anomalyThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = f
	}
	key := fmt.Sprintf("anomalies:%d:%g", p.Key(), threshold)

	s.serveCachedReport(w, r, key, func() any {
		anomalies := s.engine.DetectAnomalies(r.Context(), p, threshold)
		if anomalies == nil {
			anomalies = []core.Anomaly{}
		}
		return anomalies
	})
}

func (s *Server) handleTrendReport(w http.ResponseWriter, r *http.Request) {
	months := s.trendMonths
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 120 {
			writeError(w, http.StatusBadRequest, "invalid months")
			return
		}
		months = n
	}

	var accountID *int64
	key := fmt.Sprintf("trend:%d:all", months)
	if v := r.URL.Query().Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		accountID = &id
		key = fmt.Sprintf("trend:%d:%d", months, id)
	}

	s.serveCachedReport(w, r, key, func() any {
		trend := s.engine.BalanceTrend(r.Context(), accountID, months)
		if trend == nil {
			trend = []core.Snapshot{}
		}
		return trend
	})
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	year, ok := queryYear(w, r)
	if !ok {
		return
	}

	var month *int
	key := fmt.Sprintf("categories:%d:all", year)
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = &m
		key = fmt.Sprintf("categories:%d:%d", year, m)
	}

	s.serveCachedReport(w, r, key, func() any {
		aggs := s.engine.CategoryAggregates(r.Context(), year, month)
		if aggs == nil {
			aggs = []core.CategoryAggregate{}
		}
		return aggs
	})
}

// --- narrative ---

func (s *Server) handleMonthlyNarrative(w http.ResponseWriter, r *http.Request) {
	p, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("narrative-monthly:%d", p.Key())

	s.serveCachedReport(w, r, key, func() any {
		var docs []narrative.Document
		if doc := s.narrator.MonthlySummary(r.Context(), p); doc != nil {
			docs = append(docs, *doc)
		}
		if doc := s.narrator.AnomalySummary(r.Context(), p); doc != nil {
			docs = append(docs, *doc)
		}
		if docs == nil {
			docs = []narrative.Document{}
		}
		return docs
	})
}

func (s *Server) handleYearlyNarrative(w http.ResponseWriter, r *http.Request) {
	year, ok := queryYear(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("narrative-yearly:%d", year)

	s.serveCachedReport(w, r, key, func() any {
		var docs []narrative.Document
		if doc := s.narrator.YearlyOverview(r.Context(), year); doc != nil {
			docs = append(docs, *doc)
		}
		docs = append(docs, s.narrator.AllDocuments(r.Context(), year)...)
		if docs == nil {
			docs = []narrative.Document{}
		}
		return docs
	})
}

// serveCachedReport returns the cached payload when fresh and otherwise
// builds, caches, and serves it.
func (s *Server) serveCachedReport(w http.ResponseWriter, r *http.Request, key string, build func() any) {
	if body, found := s.reportCache.Get(key); found {
		slog.DebugContext(r.Context(), "Report cache hit", "key", key)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	body, err := json.Marshal(build())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal report", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	body = append(body, '\n')

	s.reportCache.Set(key, body)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// queryPeriod reads year and month query params, defaulting to the current
// month.
func queryPeriod(w http.ResponseWriter, r *http.Request) (core.Period, bool) {
	now := time.Now()
	p := core.PeriodOf(now)

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return core.Period{}, false
		}
		p.Year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid month")
			return core.Period{}, false
		}
		p.Month = m
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return core.Period{}, false
	}
	return p, true
}

func queryYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	year := time.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 3000 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return 0, false
		}
		year = y
	}
	return year, true
}
