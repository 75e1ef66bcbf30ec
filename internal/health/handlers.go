package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/notes"
	"github.com/alnah/go-medscribe/internal/retry"
)

// Overall health states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// BreakerReport is the JSON form of a breaker status.
type BreakerReport struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	IsOpen           bool   `json:"is_open"`
	Failures         int    `json:"failures"`
	TimeUntilResetMs int64  `json:"time_until_reset_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Breakers []BreakerReport `json:"breakers"`
}

// FailureRequest is the body of POST /v1/classify.
type FailureRequest struct {
	StatusCode int    `json:"status_code,omitempty"`
	Name       string `json:"name,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Metadata   *struct {
		HTTPStatusCode int    `json:"http_status_code,omitempty"`
		RequestID      string `json:"request_id,omitempty"`
	} `json:"metadata,omitempty"`
}

// rawFailure converts the request into the classifier's input.
func (f FailureRequest) rawFailure() apierr.RawFailure {
	r := apierr.RawFailure{
		StatusCode: f.StatusCode,
		Name:       f.Name,
		Code:       f.Code,
		Message:    f.Message,
	}
	if f.Metadata != nil {
		r.Metadata = &apierr.Metadata{HTTPStatusCode: f.Metadata.HTTPStatusCode, RequestID: f.Metadata.RequestID}
	}
	return r
}

// ServiceErrorBody is the JSON form of a *apierr.ServiceError.
type ServiceErrorBody struct {
	Code             apierr.Code     `json:"code"`
	Category         apierr.Category `json:"category"`
	UserMessage      string          `json:"user_message"`
	TechnicalMessage string          `json:"technical_message,omitempty"`
	Troubleshooting  []string        `json:"troubleshooting"`
	Retryable        bool            `json:"retryable"`
	EstimatedFixTime string          `json:"estimated_fix_time,omitempty"`
	Formatted        string          `json:"formatted"`
}

// PolicyBody is the JSON form of a retry.Config with readable durations.
type PolicyBody struct {
	MaxRetries      int     `json:"max_retries"`
	BaseDelay       string  `json:"base_delay"`
	MaxDelay        string  `json:"max_delay"`
	ExponentialBase float64 `json:"exponential_base"`
	JitterMax       string  `json:"jitter_max"`
}

// ClassifyResponse is the body of POST /v1/classify.
type ClassifyResponse struct {
	Error  ServiceErrorBody `json:"error"`
	Policy PolicyBody       `json:"recommended_policy"`
}

// ErrorResponse wraps failures of POST /v1/notes.
type ErrorResponse struct {
	Error             *ServiceErrorBody `json:"error,omitempty"`
	CircuitOpen       string            `json:"circuit_open,omitempty"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
}

func newServiceErrorBody(se *apierr.ServiceError) ServiceErrorBody {
	return ServiceErrorBody{
		Code:             se.Code,
		Category:         se.Category,
		UserMessage:      se.UserMessage,
		TechnicalMessage: se.TechnicalMessage,
		Troubleshooting:  se.Troubleshooting,
		Retryable:        se.Retryable,
		EstimatedFixTime: se.EstimatedFixTime,
		Formatted:        apierr.FormatForUser(se),
	}
}

// NewClassifyResponse pairs a classification with its retry policy.
func NewClassifyResponse(se *apierr.ServiceError, policy retry.Config) ClassifyResponse {
	return ClassifyResponse{
		Error:  newServiceErrorBody(se),
		Policy: NewPolicyBody(policy),
	}
}

// NewPolicyBody renders cfg with readable durations.
func NewPolicyBody(cfg retry.Config) PolicyBody {
	return PolicyBody{
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       cfg.BaseDelay.String(),
		MaxDelay:        cfg.MaxDelay.String(),
		ExponentialBase: cfg.ExponentialBase,
		JitterMax:       cfg.JitterMax.String(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: StatusHealthy, Breakers: []BreakerReport{}}
	for _, b := range s.breakers {
		st := b.Status()
		if st.IsOpen {
			resp.Status = StatusDegraded
		}
		resp.Breakers = append(resp.Breakers, BreakerReport{
			Name:             st.Name,
			State:            st.State.String(),
			IsOpen:           st.IsOpen,
			Failures:         st.Failures,
			TimeUntilResetMs: st.TimeUntilReset.Milliseconds(),
		})
	}

	code := http.StatusOK
	if resp.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req FailureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, apierr.InvalidInput(err.Error()))
		return
	}

	se := s.classifier.ClassifyFailure(req.rawFailure())
	s.writeJSON(w, http.StatusOK, NewClassifyResponse(se, retry.RecommendedConfig(se.Code)))
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		s.writeServiceError(w, apierr.ConfigError(errors.New("note generation is not configured")))
		return
	}

	var req notes.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, apierr.InvalidInput(err.Error()))
		return
	}

	note, err := s.generator.Generate(r.Context(), req, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, note)
}

// decodeJSON reads a bounded JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeError renders any failure of the note pipeline.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	err = retry.Final(err)
	var open *breaker.OpenError
	switch {
	case errors.As(err, &open):
		secs := int((open.Remaining + time.Second - 1) / time.Second)
		if secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			CircuitOpen:       open.Error(),
			RetryAfterSeconds: secs,
		})
	case errors.Is(err, retry.ErrCanceled):
		s.logger.Info("request canceled by client", "error", err)
		w.WriteHeader(http.StatusRequestTimeout)
	default:
		s.writeServiceError(w, s.classifier.Classify(err))
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, se *apierr.ServiceError) {
	if se.Category != apierr.CategoryValidation {
		s.logger.Warn("request failed", "code", se.Code, "category", se.Category, "error", se.TechnicalMessage)
	}
	body := newServiceErrorBody(se)
	s.writeJSON(w, httpStatus(se.Code), ErrorResponse{Error: &body})
}

// httpStatus maps a code to the response status.
func httpStatus(code apierr.Code) int {
	switch code {
	case apierr.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case apierr.CodeServiceUnavailable, apierr.CodeNetworkOffline:
		return http.StatusServiceUnavailable
	case apierr.CodeNetworkTimeout:
		return http.StatusGatewayTimeout
	case apierr.CodeConfigError, apierr.CodeUnknown:
		return http.StatusInternalServerError
	}
	if code.Category() == apierr.CategoryValidation {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
