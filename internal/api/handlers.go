package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"liquidityflow/internal/model"
	"liquidityflow/internal/policy"
	"liquidityflow/internal/pool"
)

type poolResponse struct {
	Params pool.Params `json:"params"`
	Config pool.Config `json:"config"`
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.pool.Config(r.Context())
	if err != nil {
		s.fail(w, model.OpPoolLookup, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponse{Params: s.pool.Params(), Config: cfg})
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) {
	amountIn, err := queryUint(r, "amount_in", true)
	if err != nil {
		s.fail(w, model.OpQuote, err)
		return
	}
	tolerance, err := queryUint(r, "tolerance_bps", false)
	if err != nil {
		s.fail(w, model.OpQuote, err)
		return
	}

	q, err := s.pool.Quote(r.Context(), r.URL.Query().Get("asset_in"), amountIn)
	if err != nil {
		s.fail(w, model.OpQuote, err)
		return
	}
	minOut, err := policy.MinAmountOut(q.AmountOut, tolerance)
	if err != nil {
		s.fail(w, model.OpQuote, err)
		return
	}

	writeJSON(w, http.StatusOK, model.QuoteResponse{
		AssetIn:        q.AssetIn,
		AssetOut:       q.AssetOut,
		AmountIn:       q.AmountIn,
		FeeBasisPoints: q.FeeBasisPoints,
		Fee:            q.Fee,
		NetIn:          q.NetIn,
		AmountOut:      q.AmountOut,
		MinAmountOut:   minOut,
		ToleranceBps:   tolerance,
	})
}

func (s *Server) getStake(w http.ResponseWriter, r *http.Request) {
	rec, err := s.pool.Stake(r.Context(), chi.URLParam(r, "participant"))
	if err != nil {
		s.fail(w, model.OpStakeLookup, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getMitigation(w http.ResponseWriter, r *http.Request) {
	if s.mitigator == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Kind: "internal", Error: "mitigation is not configured"})
		return
	}
	threshold, err := queryUint(r, "threshold", true)
	if err != nil {
		s.fail(w, model.OpMitigate, err)
		return
	}
	sig, err := s.mitigator.Evaluate(r.Context(), threshold)
	if err != nil {
		s.fail(w, model.OpMitigate, err)
		return
	}
	if s.observer != nil {
		s.observer.ObserveSignal(sig)
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) provideLiquidity(w http.ResponseWriter, r *http.Request) {
	var req model.ProvideLiquidityRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, model.OpProvideLiquidity, err)
		return
	}
	participant, err := participantFor(r, req.Participant)
	if err != nil {
		s.fail(w, model.OpProvideLiquidity, err)
		return
	}
	ev, err := s.pool.ProvideLiquidity(r.Context(), participant, req.AmountA, req.AmountB)
	if err != nil {
		s.fail(w, model.OpProvideLiquidity, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) removeLiquidity(w http.ResponseWriter, r *http.Request) {
	var req model.RemoveLiquidityRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, model.OpRemoveLiquidity, err)
		return
	}
	participant, err := participantFor(r, req.Participant)
	if err != nil {
		s.fail(w, model.OpRemoveLiquidity, err)
		return
	}
	ev, err := s.pool.RemoveLiquidity(r.Context(), participant, req.LiquidityAmount)
	if err != nil {
		s.fail(w, model.OpRemoveLiquidity, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) swapTokens(w http.ResponseWriter, r *http.Request) {
	var req model.SwapRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, model.OpSwapTokens, err)
		return
	}
	participant, err := participantFor(r, req.Participant)
	if err != nil {
		s.fail(w, model.OpSwapTokens, err)
		return
	}
	ev, err := s.pool.SwapTokens(r.Context(), participant, req.AssetIn, req.AmountIn, req.MinAmountOut)
	if err != nil {
		s.fail(w, model.OpSwapTokens, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) stakeTokens(w http.ResponseWriter, r *http.Request) {
	var req model.StakeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, model.OpStakeTokens, err)
		return
	}
	participant, err := participantFor(r, req.Participant)
	if err != nil {
		s.fail(w, model.OpStakeTokens, err)
		return
	}
	ev, err := s.pool.StakeTokens(r.Context(), participant, req.Amount)
	if err != nil {
		s.fail(w, model.OpStakeTokens, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) unstakeTokens(w http.ResponseWriter, r *http.Request) {
	var req model.StakeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, model.OpUnstakeTokens, err)
		return
	}
	participant, err := participantFor(r, req.Participant)
	if err != nil {
		s.fail(w, model.OpUnstakeTokens, err)
		return
	}
	ev, err := s.pool.UnstakeTokens(r.Context(), participant, req.Amount)
	if err != nil {
		s.fail(w, model.OpUnstakeTokens, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) adjustFee(w http.ResponseWriter, r *http.Request) {
	var req model.AdjustFeeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, model.OpAdjustFee, err)
		return
	}
	ev, err := s.pool.AdjustFee(r.Context(), r.Header.Get(CallerHeader), req.MarketVolatility)
	if err != nil {
		s.fail(w, model.OpAdjustFee, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
