package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface is the set of API operations.
type ServerInterface interface {
	// Rank handles POST /v1/rank.
	Rank(w http.ResponseWriter, r *http.Request)
	// RankQuery handles GET /v1/rank.
	RankQuery(w http.ResponseWriter, r *http.Request, params RankQueryParams)
	// GetWeights handles GET /v1/weights.
	GetWeights(w http.ResponseWriter, r *http.Request)
	// ReloadWeights handles POST /v1/weights/reload.
	ReloadWeights(w http.ResponseWriter, r *http.Request)
	// HealthCheck handles GET /health.
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// Metrics handles GET /metrics.
	Metrics(w http.ResponseWriter, r *http.Request)
}

// ChiServerOptions configure route registration.
type ChiServerOptions struct {
	BaseRouter chi.Router
	// AdminMiddlewares wrap the mutating admin routes only.
	AdminMiddlewares []func(http.Handler) http.Handler
	// ErrorHandlerFunc renders parameter binding failures.
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a query parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// HandlerWithOptions registers si on the base router (a new one when nil).
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	errorHandler := options.ErrorHandlerFunc
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	r.Get("/health", si.HealthCheck)
	r.Get("/metrics", si.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/rank", si.Rank)
		r.Get("/rank", func(w http.ResponseWriter, req *http.Request) {
			params, err := bindRankQueryParams(req)
			if err != nil {
				errorHandler(w, req, err)
				return
			}
			si.RankQuery(w, req, params)
		})
		r.Get("/weights", si.GetWeights)
		r.Group(func(r chi.Router) {
			r.Use(options.AdminMiddlewares...)
			r.Post("/weights/reload", si.ReloadWeights)
		})
	})
	return r
}

func bindRankQueryParams(r *http.Request) (RankQueryParams, error) {
	var params RankQueryParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "q", query, &params.Q); err != nil {
		return params, &InvalidParamFormatError{ParamName: "q", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", query, &params.TopK); err != nil {
		return params, &InvalidParamFormatError{ParamName: "top_k", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "order", query, &params.Order); err != nil {
		return params, &InvalidParamFormatError{ParamName: "order", Err: err}
	}
	return params, nil
}
