package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"mindspend/internal/coaching"
	"mindspend/internal/core"
	"mindspend/internal/log"
	"mindspend/internal/middleware/ratelimit"
	"mindspend/internal/middleware/security"
	"mindspend/internal/middleware/trace"
	"mindspend/internal/services"
)

type (
	// EventWriter creates, patches and deletes an owner's events.
	EventWriter interface {
		CreateStressEvent(ctx context.Context, ownerID string, in services.StressInput) (core.StressEvent, error)
		UpdateStressEvent(ctx context.Context, ownerID, id string, p services.StressPatch) (core.StressEvent, error)
		DeleteStressEvent(ctx context.Context, ownerID, id string) error
		CreateFinanceEvent(ctx context.Context, ownerID string, in services.FinanceInput) (core.FinanceEvent, error)
		UpdateFinanceEvent(ctx context.Context, ownerID, id string, p services.FinancePatch) (core.FinanceEvent, error)
		DeleteFinanceEvent(ctx context.Context, ownerID, id string) error
	}

	InsightReader interface {
		StressSpend(ctx context.Context, ownerID string, days int, end time.Time, focus string) (core.StressSpendInsight, error)
	}

	SummarySyncer interface {
		UpdateForDate(ctx context.Context, ownerID, date string) (core.DailySummary, error)
		SyncRange(ctx context.Context, ownerID string, dates []string) ([]core.DailySummary, error)
	}

	RecordReader interface {
		GetDailyRecord(ctx context.Context, ownerID, date string) (core.DailyRecord, error)
	}

	// Coach generates or returns cached coaching cards.
	Coach interface {
		EnsureDaily(ctx context.Context, ownerID, date string) (*core.CoachingPayload, error)
		GenerateDaily(ctx context.Context, ownerID, date string) (*core.CoachingPayload, error)
		EnsurePeriod(ctx context.Context, ownerID string, days int, end time.Time) (*core.CoachingPayload, error)
		GeneratePeriod(ctx context.Context, ownerID string, days int, end time.Time) (*core.CoachingPayload, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Deps are the collaborators behind the API. Coach may be nil, in which case
// the coaching routes answer 503.
type Deps struct {
	Events    EventWriter
	Insights  InsightReader
	Summaries SummarySyncer
	Records   RecordReader
	Coach     Coach
	Ready     Pinger
	Logger    *log.Logger
	// Limiter throttles every request per owner, falling back to client IP.
	Limiter  *ratelimit.Limiter
	Location *time.Location
	Now      func() time.Time
	// Coaching validates stored payloads attached to summary reads.
	Coaching coaching.Options
}

type Server struct {
	http.Server
	deps  Deps
	trace *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.FromContext(context.Background())
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Coaching.Now == nil {
		deps.Coaching.Now = deps.Now
	}

	s := &Server{
		deps:  deps,
		trace: trace.NewMiddleware(security.ClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /v1/stress-events", s.handleCreateStress)
	mux.HandleFunc("PATCH /v1/stress-events/{id}", s.handleUpdateStress)
	mux.HandleFunc("DELETE /v1/stress-events/{id}", s.handleDeleteStress)
	mux.HandleFunc("POST /v1/finance-events", s.handleCreateFinance)
	mux.HandleFunc("PATCH /v1/finance-events/{id}", s.handleUpdateFinance)
	mux.HandleFunc("DELETE /v1/finance-events/{id}", s.handleDeleteFinance)

	mux.HandleFunc("GET /v1/summaries/{date}", s.handleGetSummary)
	mux.HandleFunc("POST /v1/summaries/{date}/refresh", s.handleRefreshSummary)
	mux.HandleFunc("POST /v1/summaries/sync", s.handleSyncSummaries)
	mux.HandleFunc("GET /v1/insights/stress-spend", s.handleStressSpend)
	mux.HandleFunc("POST /v1/coaching/daily/{date}", s.handleDailyCoaching)
	mux.HandleFunc("POST /v1/coaching/period", s.handlePeriodCoaching)

	var handler http.Handler = mux
	if deps.Limiter != nil {
		handler = deps.Limiter.Middleware(limitKey, func(w http.ResponseWriter, r *http.Request) {
			NewJSONResponse().
				Status(http.StatusTooManyRequests).
				Body(errorBody{Error: errorDetail{Code: "rate_limited", Message: "rate limit exceeded, try again later"}}).
				Write(w)
		})(handler)
	}
	handler = security.Headers(handler)
	handler = s.trace.Middleware(handler)
	handler = log.Middleware(deps.Logger.WithComponent(log.ComponentHTTP))(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the limiter and drains the server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.deps.Limiter != nil {
			s.deps.Limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics reports request totals seen by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.trace.Metrics()
}

func limitKey(r *http.Request) string {
	if owner := strings.TrimSpace(r.Header.Get(OwnerHeader)); owner != "" {
		return "owner:" + owner
	}
	return "ip:" + security.ClientIP(r)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			NewJSONResponse().Status(http.StatusServiceUnavailable).Body(map[string]string{"status": "unavailable"}).Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
