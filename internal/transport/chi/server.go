package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/logger"
	healthuc "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/health"
	rankuc "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/rank"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/version"
)

// Ranker ranks entities for a text.
type Ranker interface {
	Rank(ctx context.Context, text string, topK int, order ranking.Order) rankuc.Result
}

// WeightsHolder exposes and reloads the active weights.
type WeightsHolder interface {
	Current() domweights.Artifact
	Reload() (domweights.Artifact, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server implements ServerInterface.
type Server struct {
	ranker       Ranker
	weights      WeightsHolder
	health       HealthChecker
	defaultOrder ranking.Order
	validate     *validator.Validate
	logger       *zap.Logger
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	ranker Ranker,
	weights WeightsHolder,
	health HealthChecker,
	defaultOrder ranking.Order,
	logger *zap.Logger,
) *Server {
	if defaultOrder == "" {
		defaultOrder = ranking.OrderScore
	}
	return &Server{
		ranker:       ranker,
		weights:      weights,
		health:       health,
		defaultOrder: defaultOrder,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Rank handles POST /v1/rank.
func (s *Server) Rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return
	}
	s.rank(w, r, req.Text, req.TopK, req.Order)
}

// RankQuery handles GET /v1/rank.
func (s *Server) RankQuery(w http.ResponseWriter, r *http.Request, params RankQueryParams) {
	if err := s.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return
	}
	order := ""
	if params.Order != nil {
		order = *params.Order
	}
	s.rank(w, r, params.Q, params.TopK, order)
}

func (s *Server) rank(w http.ResponseWriter, r *http.Request, text string, topKPtr *int, orderName string) {
	order := s.defaultOrder
	if orderName != "" {
		o, err := ranking.ParseOrder(orderName)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
			return
		}
		order = o
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	res := s.ranker.Rank(ctx, text, derefInt(topKPtr), order)

	logger.FromContext(ctx).Debug("Rank completed",
		zap.String("status", string(res.Status)),
		zap.Int("items", len(res.Items)),
		zap.Int("mentions", len(res.Mentions)),
	)

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, rankResultToResponse(res))
}

// GetWeights handles GET /v1/weights.
func (s *Server) GetWeights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, artifactToResponse(s.weights.Current()))
}

// ReloadWeights handles POST /v1/weights/reload.
func (s *Server) ReloadWeights(w http.ResponseWriter, r *http.Request) {
	a, err := s.weights.Reload()
	if err != nil {
		logger.FromContext(r.Context()).Warn("Weights reload rejected", zap.Error(err))
		if errors.Is(err, domain.ErrInvalidWeights) {
			writeError(w, http.StatusUnprocessableEntity, ErrorCodeInvalidWeights, domain.ErrInvalidWeights.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, artifactToResponse(a))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:   string(report.Status),
		Checks:   checks,
		Universe: report.Universe,
		Version:  version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// validationMessage reports the first failing field without exposing internals.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fe.Field() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return msg
	}
	return "invalid request"
}

func rankResultToResponse(res rankuc.Result) RankResponse {
	resp := RankResponse{
		Status: string(res.Status),
		Order:  string(res.Order),
		TopK:   res.TopK,
		Items:  make([]RankItem, len(res.Items)),
	}
	for i, it := range res.Items {
		resp.Items[i] = RankItem{
			Symbol: it.Symbol,
			Name:   it.Name,
			Score:  it.Score,
			Signals: Signals{
				SimA1:          it.Signals.SimA1,
				SimB1:          it.Signals.SimB1,
				SimA2:          it.Signals.SimA2,
				SimB2:          it.Signals.SimB2,
				KeywordOverlap: it.Signals.KeywordOverlap,
				IndustryMatch:  it.Signals.IndustryMatch,
				Mention:        it.Signals.Mention.String(),
			},
		}
	}
	if len(res.Mentions) > 0 {
		resp.Mentions = make(map[string]string, len(res.Mentions))
		for sym, lvl := range res.Mentions {
			resp.Mentions[sym] = lvl.String()
		}
	}
	if res.Keywords.Len() > 0 {
		resp.Keywords = res.Keywords.Sorted()
	}
	if res.WeightsVersion != uuid.Nil {
		v := res.WeightsVersion
		resp.WeightsVersion = &v
	}
	return resp
}

func artifactToResponse(a domweights.Artifact) WeightsResponse {
	resp := WeightsResponse{
		Calibrated: a.Calibrated(),
		Weights: Weights{
			Alpha1:  a.Weights.Alpha1,
			Alpha2:  a.Weights.Alpha2,
			Beta1:   a.Weights.Beta1,
			Beta2:   a.Weights.Beta2,
			Lambda1: a.Weights.Lambda1,
			Lambda2: a.Weights.Lambda2,
			Lambda3: a.Weights.Lambda3,
			TopK:    a.Weights.TopK,
		},
	}
	if a.Calibrated() {
		v, hit, trials, conv, created := a.Version, a.HitAtK, a.Trials, a.Converged, a.CreatedAt
		resp.Version = &v
		resp.HitAtK = &hit
		resp.Trials = &trials
		resp.Converged = &conv
		resp.CreatedAt = &created
	}
	return resp
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
