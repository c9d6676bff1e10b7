// Package http serves the JSON API for accounts, expenses, budgets and
// reports.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"outgo/internal/auth"
	"outgo/internal/cache"
	"outgo/internal/core"
)

// Ports the server depends on. The services and stores in this module
// satisfy them; tests plug in fakes.
type (
	UserStore interface {
		CreateUser(ctx context.Context, username, passwordHash string) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, string, error)
		GetUserByID(ctx context.Context, id int64) (core.User, error)
	}

	SessionStore interface {
		Create(userID int64, username string) (auth.Session, error)
		Get(token string) (auth.Session, bool, error)
		Delete(token string) error
	}

	ExpenseManager interface {
		Create(ctx context.Context, user core.User, e core.Expense) (int64, core.BudgetStatus, error)
		Update(ctx context.Context, user core.User, e core.Expense) (core.BudgetStatus, error)
		Delete(ctx context.Context, userID, id int64) error
		List(ctx context.Context, userID int64, f core.Filter) ([]core.Expense, error)
	}

	BudgetManager interface {
		Set(ctx context.Context, userID int64, month core.MonthKey, amount core.Money) error
		Get(ctx context.Context, userID int64, month core.MonthKey) (core.Budget, bool, error)
		Status(ctx context.Context, userID int64, month core.MonthKey) (core.BudgetStatus, error)
	}

	Reporter interface {
		Summary(ctx context.Context, userID int64, f core.Filter) (core.PeriodSummary, error)
		Categories(ctx context.Context, userID int64, f core.Filter) ([]core.CategoryShare, error)
		Daily(ctx context.Context, userID int64, f core.Filter) ([]core.DailyTotal, error)
		Monthly(ctx context.Context, userID int64, f core.Filter) ([]core.MonthlyTotal, error)
	}
)

// Deps bundles everything the server needs. Ready is optional and backs
// the /readyz probe.
type Deps struct {
	Users    UserStore
	Sessions SessionStore
	Expenses ExpenseManager
	Budgets  BudgetManager
	Reports  Reporter
	Ready    func(ctx context.Context) error
}

type Server struct {
	http.Server
	deps        Deps
	rateLimiter *rateLimiter

	// Report responses are cached per user and filter; a per-user epoch
	// folded into the key invalidates everything on any write.
	summaryCache  *cache.LRUCache[core.PeriodSummary]
	categoryCache *cache.LRUCache[[]core.CategoryShare]
	dailyCache    *cache.LRUCache[[]core.DailyTotal]
	monthlyCache  *cache.LRUCache[[]core.MonthlyTotal]
	epochs        userEpochs
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 64 << 10,
		},
		deps:          deps,
		rateLimiter:   newRateLimiter(),
		summaryCache:  cache.NewLRUCache[core.PeriodSummary](200, 5*time.Minute),
		categoryCache: cache.NewLRUCache[[]core.CategoryShare](200, 5*time.Minute),
		dailyCache:    cache.NewLRUCache[[]core.DailyTotal](200, 5*time.Minute),
		monthlyCache:  cache.NewLRUCache[[]core.MonthlyTotal](200, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.categoryCache)
	s.cacheManager.Register(s.dailyCache)
	s.cacheManager.Register(s.monthlyCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/signup", s.withSecurity(s.handleSignup))
	mux.HandleFunc("/api/login", s.withSecurity(s.handleLogin))
	mux.HandleFunc("/api/logout", s.withSecurity(s.withAuth(s.handleLogout)))
	mux.HandleFunc("/api/me", s.withSecurity(s.withAuth(s.handleMe)))
	mux.HandleFunc("/api/categories", s.withSecurity(s.handleCategories))

	mux.HandleFunc("/api/expenses", s.withSecurity(s.withAuth(s.handleExpenses)))
	mux.HandleFunc("/api/budget", s.withSecurity(s.withAuth(s.handleBudget)))
	mux.HandleFunc("/api/budget/status", s.withSecurity(s.withAuth(s.handleBudgetStatus)))

	mux.HandleFunc("/api/reports/summary", s.withSecurity(s.withAuth(s.handleReportSummary)))
	mux.HandleFunc("/api/reports/categories", s.withSecurity(s.withAuth(s.handleReportCategories)))
	mux.HandleFunc("/api/reports/daily", s.withSecurity(s.withAuth(s.handleReportDaily)))
	mux.HandleFunc("/api/reports/monthly", s.withSecurity(s.withAuth(s.handleReportMonthly)))

	mux.HandleFunc("/api/export/csv", s.withSecurity(s.withAuth(s.handleExportCSV)))

	return s
}

// Shutdown stops the cleanup goroutines and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// userEpochs tracks a counter per user that is folded into report cache
// keys. Bumping it makes all of a user's cached reports unreachable.
type userEpochs struct {
	mu sync.Mutex
	m  map[int64]uint64
}

func (u *userEpochs) get(userID int64) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.m[userID]
}

func (u *userEpochs) bump(userID int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.m == nil {
		u.m = make(map[int64]uint64)
	}
	u.m[userID]++
}

func (s *Server) reportCacheKey(userID int64, f core.Filter) string {
	return fmt.Sprintf("%d:%d:%s", userID, s.epochs.get(userID), f.Key())
}

// invalidateReports drops the user's cached report responses.
func (s *Server) invalidateReports(userID int64) {
	s.epochs.bump(userID)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
