// Package http is the view surface of the ledger: a small JSON API the
// desktop/overlay UI consumes. Every mutation goes through the ledger
// service, followed by a read-back of current state; handlers never mutate
// cached copies.
package http

import (
	"net/http"
	"time"

	"github.com/sethflower/smena/internal/cache"
	"github.com/sethflower/smena/internal/core"
	"github.com/sethflower/smena/internal/log"
	"github.com/sethflower/smena/internal/services"
)

const summaryCacheSize = 256

type Server struct {
	http.Server

	service *services.LedgerService
	logger  *log.Logger
	started time.Time

	// Aggregates are cheap but requested every UI refresh tick; cache them
	// briefly and purge on any mutation.
	dayCache   *cache.LRUCache[core.PeriodTotals]
	rangeCache *cache.LRUCache[core.PeriodTotals]
	daysCache  *cache.LRUCache[[]core.DaySummary]
}

func NewServer(addr string, service *services.LedgerService, logger *log.Logger, cacheTTL time.Duration) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		service: service,
		logger:  logger.WithComponent(log.ComponentHTTP),
		started: time.Now(),

		dayCache:   cache.NewLRUCache[core.PeriodTotals](summaryCacheSize, cacheTTL),
		rangeCache: cache.NewLRUCache[core.PeriodTotals](summaryCacheSize, cacheTTL),
		daysCache:  cache.NewLRUCache[[]core.DaySummary](summaryCacheSize, cacheTTL),
	}

	s.Server = http.Server{
		Addr:           addr,
		Handler:        log.RequestMiddleware(s.logger)(s.routes()),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/shift/active", s.handleActiveShift)
	mux.HandleFunc("POST /api/shift/close", s.handleCloseShift)
	mux.HandleFunc("POST /api/shift/reset", s.handleResetShift)

	mux.HandleFunc("POST /api/operations", s.handleAddOperation)
	mux.HandleFunc("GET /api/operations/{opID}", s.handleFindOperation)
	mux.HandleFunc("DELETE /api/shifts/{shiftID}/operations/{opID}", s.handleDeleteOperation)

	mux.HandleFunc("GET /api/summary/alltime", s.handleAllTimeSummary)
	mux.HandleFunc("GET /api/summary/day", s.handleDaySummary)
	mux.HandleFunc("GET /api/summary/range", s.handleRangeSummary)
	mux.HandleFunc("GET /api/summary/expenses", s.handleExpenseBreakdown)
	mux.HandleFunc("GET /api/history/days", s.handleHistoryDays)
	mux.HandleFunc("POST /api/history/reset", s.handleResetHistory)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	return mux
}

// CacheCleaners exposes the summary caches for the cleanup manager.
func (s *Server) CacheCleaners() []cache.Cleaner {
	return []cache.Cleaner{s.dayCache, s.rangeCache, s.daysCache}
}

// invalidateSummaries drops every cached aggregate. Called after each
// mutation; the next read recomputes from the store snapshot.
func (s *Server) invalidateSummaries() {
	s.dayCache.Purge()
	s.rangeCache.Purge()
	s.daysCache.Purge()
}
