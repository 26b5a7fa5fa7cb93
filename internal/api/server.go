// Package api serves the pool engine and the risk mitigator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/events"
	"liquidityflow/internal/pool"
	"liquidityflow/internal/risk"
)

// CallerHeader carries the identity of the party issuing a request.
const CallerHeader = "X-Caller"

// Pool is the engine surface exposed over HTTP.
type Pool interface {
	Params() pool.Params
	Config(ctx context.Context) (pool.Config, error)
	Stake(ctx context.Context, participant string) (pool.StakeRecord, error)
	Quote(ctx context.Context, assetIn string, amountIn uint64) (pool.SwapQuote, error)
	ProvideLiquidity(ctx context.Context, participant string, amountA, amountB uint64) (events.LiquidityAdded, error)
	RemoveLiquidity(ctx context.Context, participant string, liquidityAmount uint64) (events.LiquidityRemoved, error)
	SwapTokens(ctx context.Context, participant, assetIn string, amountIn, minAmountOut uint64) (events.SwapExecuted, error)
	StakeTokens(ctx context.Context, participant string, amount uint64) (events.TokensStaked, error)
	UnstakeTokens(ctx context.Context, participant string, amount uint64) (events.TokensUnstaked, error)
	AdjustFee(ctx context.Context, caller string, marketVolatility uint64) (events.FeeAdjusted, error)
}

// Evaluator produces a mitigation signal for a price threshold.
type Evaluator interface {
	Evaluate(ctx context.Context, priceThreshold uint64) (risk.Signal, error)
}

// Observer is told about rejected operations and emitted signals.
type Observer interface {
	ObserveFailure(op string, err error)
	ObserveSignal(sig risk.Signal)
}

type Config struct {
	Pool      Pool
	Mitigator Evaluator
	Observer  Observer
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
	Timeout   time.Duration
}

type Server struct {
	pool      Pool
	mitigator Evaluator
	observer  Observer
	logger    *zap.Logger

	router http.Handler
}

func New(cfg Config) (*Server, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("api pool is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Server{
		pool:      cfg.Pool,
		mitigator: cfg.Mitigator,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
	}
	s.router = s.buildRouter(cfg.Gatherer, cfg.Timeout)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(gatherer prometheus.Gatherer, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(api chi.Router) {
		api.Get("/pool", s.getPool)
		api.Get("/quote", s.getQuote)
		api.Get("/stakes/{participant}", s.getStake)
		api.Get("/mitigation", s.getMitigation)

		api.Post("/liquidity", s.provideLiquidity)
		api.Post("/liquidity/remove", s.removeLiquidity)
		api.Post("/swaps", s.swapTokens)
		api.Post("/stakes", s.stakeTokens)
		api.Post("/stakes/withdraw", s.unstakeTokens)
		api.Post("/fee", s.adjustFee)
	})
	return r
}

type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func statusForKind(kind string) int {
	switch kind {
	case "invalid_parameter":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "slippage_exceeded":
		return http.StatusConflict
	case "insufficient_balance", "overflow":
		return http.StatusUnprocessableEntity
	case "oracle_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if s.observer != nil {
		s.observer.ObserveFailure(op, err)
	}
	kind := domain.Kind(err)
	status := statusForKind(kind)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("op", op), zap.String("kind", kind), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Kind: kind, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode request: %v", domain.ErrInvalidParameter, err)
	}
	return nil
}

// participantFor resolves who is acting. The caller header wins; a body
// participant that names someone else is rejected.
func participantFor(r *http.Request, fromBody string) (string, error) {
	caller := r.Header.Get(CallerHeader)
	switch {
	case caller == "":
		return fromBody, nil
	case fromBody == "" || fromBody == caller:
		return caller, nil
	default:
		return "", fmt.Errorf("%w: caller %q cannot act for %q", domain.ErrUnauthorized, caller, fromBody)
	}
}

func queryUint(r *http.Request, key string, required bool) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		if required {
			return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidParameter, key)
		}
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidParameter, key, err)
	}
	return v, nil
}
