package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"careai-backend/internal/domain"
	"careai-backend/internal/usecase"
)

const (
	headerUserID        = "X-User-Id"
	headerCorrelationID = "X-Correlation-Id"

	maxJSONBodyBytes     = 64 << 10
	defaultMaxAudioBytes = 25 << 20
)

type Triager interface {
	Triage(ctx context.Context, in usecase.TriageInput) (usecase.TriageOutput, error)
}

type Relayer interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, in usecase.TranscribeInput) (string, error)
}

type HistoryManager interface {
	List(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error)
	Delete(ctx context.Context, userID, id string) error
}

// RequestObserver records one served request per route pattern.
type RequestObserver interface {
	ObserveRequest(route string, status int)
}

// Deps wires the handler. Triage is required; routes for the other services
// are mounted only when the service is set.
type Deps struct {
	Triage         Triager
	Relay          Relayer
	Transcribe     Transcriber
	History        HistoryManager
	AllowedOrigins []string
	Logger         *slog.Logger
	Metrics        RequestObserver
	MaxAudioBytes  int64
}

// Handler serves the HTTP API both as an http.Handler and as an API Gateway
// proxy Lambda handler.
type Handler struct {
	deps     Deps
	logger   *slog.Logger
	router   chi.Router
	accessor core.RequestAccessor
}

type triageRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type triageResponse struct {
	domain.Verdict
	ID        string     `json:"id,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Saved     bool       `json:"saved"`
}

type chatRequest struct {
	Model       string               `json:"model,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
	Messages    []domain.ChatMessage `json:"messages"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

type historyItem struct {
	ID        string       `json:"id"`
	Prompt    string       `json:"prompt"`
	Condition string       `json:"condition"`
	Level     domain.Level `json:"level"`
	Dangerous bool         `json:"dangerous"`
	Advice    []string     `json:"advice"`
	CreatedAt time.Time    `json:"createdAt"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(deps Deps) (*Handler, error) {
	if deps.Triage == nil {
		return nil, errors.New("handler: triage service must not be nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxAudioBytes <= 0 {
		deps.MaxAudioBytes = defaultMaxAudioBytes
	}
	h := &Handler{deps: deps, logger: deps.Logger}
	h.router = h.routes()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.correlationID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(h.deps.AllowedOrigins)))
	r.Use(h.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/triage", h.handleTriage)
	if h.deps.Relay != nil {
		r.Post("/chat", h.handleChat)
	}
	if h.deps.Transcribe != nil {
		r.Post("/transcribe", h.handleTranscribe)
	}
	if h.deps.History != nil {
		r.Get("/history", h.handleListHistory)
		r.Delete("/history/{id}", h.handleDeleteHistory)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "method not allowed"})
	})
	return r
}

// corsOptions allows any origin when none are configured.
func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", headerUserID, headerCorrelationID},
		ExposedHeaders: []string{headerCorrelationID},
		MaxAge:         3600,
	}
}

func (h *Handler) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := h.deps.Triage.Triage(r.Context(), usecase.TriageInput{
		Text:   req.Text,
		Model:  req.Model,
		UserID: r.Header.Get(headerUserID),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := triageResponse{Verdict: out.Verdict, Saved: out.Saved()}
	if out.Record != nil {
		created := out.Record.CreatedAt
		resp.ID = out.Record.ID
		resp.CreatedAt = &created
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := h.deps.Relay.Relay(r.Context(), usecase.RelayInput{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    req.Messages,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(out.Status)
	_, _ = w.Write(out.Body)
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxAudioBytes)
	if err := r.ParseMultipartForm(h.deps.MaxAudioBytes); err != nil {
		h.writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_multipart", Err: err})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := usecase.TranscribeInput{Model: r.FormValue("model")}
	file, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		in.Audio = file
		in.Filename = hdr.Filename
	case errors.Is(err, http.ErrMissingFile):
	default:
		h.writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_multipart", Err: err})
		return
	}

	text, err := h.deps.Transcribe.Transcribe(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text})
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_limit", Err: err})
			return
		}
		limit = n
	}

	recs, err := h.deps.History.List(r.Context(), r.Header.Get(headerUserID), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := historyResponse{Items: make([]historyItem, 0, len(recs))}
	for _, rec := range recs {
		resp.Items = append(resp.Items, historyItem{
			ID:        rec.ID,
			Prompt:    rec.Prompt,
			Condition: rec.Verdict.Condition,
			Level:     rec.Verdict.Level,
			Dangerous: rec.Verdict.Dangerous,
			Advice:    rec.Verdict.Advice,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.History.Delete(r.Context(), r.Header.Get(headerUserID), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		reason := "invalid_json"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			reason = "body_too_large"
		}
		if errors.Is(err, io.EOF) {
			reason = "empty_body"
		}
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: reason, Err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type upstreamMessager interface {
	UpstreamMessage() string
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := usecase.ErrorInternal
	message := "internal error"

	var usecaseErr *usecase.Error
	if errors.As(err, &usecaseErr) {
		code = usecaseErr.Code
		message = usecaseErr.Reason
		var upstream upstreamMessager
		if code == usecase.ErrorUpstream && errors.As(err, &upstream) {
			message = upstream.UpstreamMessage()
		}
	}

	status := statusFor(code)
	logger := loggerFromContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "code", code, "err", err)
	} else {
		logger.InfoContext(r.Context(), "request rejected", "code", code, "reason", message)
	}
	writeJSON(w, status, errorResponse{Error: string(code), Message: message})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorTimeout:
		return http.StatusGatewayTimeout
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userIDPresent(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get(headerUserID)) != ""
}
