package chi

import (
	"time"

	"github.com/google/uuid"
)

// ErrorCode is the machine-readable error class of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeInvalidWeights   ErrorCode = "invalid_weights"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RankRequest is the body of POST /v1/rank.
type RankRequest struct {
	Text  string `json:"text" validate:"required,max=10000"`
	TopK  *int   `json:"top_k,omitempty" validate:"omitempty,min=1"`
	Order string `json:"order,omitempty" validate:"omitempty,oneof=score mention_first"`
}

// RankQueryParams are the query parameters of GET /v1/rank.
type RankQueryParams struct {
	Q     string  `validate:"required,max=10000"`
	TopK  *int    `validate:"omitempty,min=1"`
	Order *string `validate:"omitempty,oneof=score mention_first"`
}

// Signals are the per-entity scoring features.
type Signals struct {
	SimA1          float64 `json:"sim_a1"`
	SimB1          float64 `json:"sim_b1"`
	SimA2          float64 `json:"sim_a2"`
	SimB2          float64 `json:"sim_b2"`
	KeywordOverlap int     `json:"keyword_overlap"`
	IndustryMatch  bool    `json:"industry_match"`
	Mention        string  `json:"mention"`
}

// RankItem is one ranked entity.
type RankItem struct {
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Signals Signals `json:"signals"`
}

// RankResponse is the body of a rank call. Status is ok, empty,
// encoder_unavailable or index_unavailable.
type RankResponse struct {
	Status         string            `json:"status"`
	Order          string            `json:"order"`
	TopK           int               `json:"top_k"`
	Items          []RankItem        `json:"items"`
	Mentions       map[string]string `json:"mentions,omitempty"`
	Keywords       []string          `json:"keywords,omitempty"`
	WeightsVersion *uuid.UUID        `json:"weights_version,omitempty"`
}

// Weights mirrors the seven mixing weights and the cut-off.
type Weights struct {
	Alpha1  float64 `json:"alpha1"`
	Alpha2  float64 `json:"alpha2"`
	Beta1   float64 `json:"beta1"`
	Beta2   float64 `json:"beta2"`
	Lambda1 float64 `json:"lambda1"`
	Lambda2 float64 `json:"lambda2"`
	Lambda3 float64 `json:"lambda3"`
	TopK    int     `json:"top_k"`
}

// WeightsResponse describes the active weights artifact.
type WeightsResponse struct {
	Calibrated bool       `json:"calibrated"`
	Version    *uuid.UUID `json:"version,omitempty"`
	Weights    Weights    `json:"weights"`
	HitAtK     *float64   `json:"best_hit_at_k_valid,omitempty"`
	Trials     *int       `json:"trials,omitempty"`
	Converged  *bool      `json:"converged,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Universe int               `json:"universe"`
	Version  string            `json:"version"`
}
