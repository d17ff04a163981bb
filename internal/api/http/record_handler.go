// internal/api/http/record_handler.go
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"taskchain-dispatcher/internal/config"
	"taskchain-dispatcher/internal/domain"
	"taskchain-dispatcher/internal/metrics"
	"taskchain-dispatcher/internal/usecase"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RecordHandler serves the admin API over reminders, messages, profiles and the dispatch log.
type RecordHandler struct {
	service  *usecase.RecordService
	leader   domain.LeaderElectionManager
	nodes    domain.NodeRegistry
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewRecordHandler creates a handler. leader and nodes feed /healthz.
func NewRecordHandler(service *usecase.RecordService, leader domain.LeaderElectionManager, nodes domain.NodeRegistry, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		service:  service,
		leader:   leader,
		nodes:    nodes,
		logger:   logger.With("component", "record-handler"),
		validate: config.NewValidator(),
		tracer:   otel.Tracer("taskchain-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers the admin routes on mux.
func (h *RecordHandler) RegisterRoutes(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /users/{userId}/reminders", h.handleCreateReminder},
		{"GET /users/{userId}/reminders/{reminderId}", h.handleGetReminder},
		{"POST /users/{userId}/reminders/{reminderId}/retry", h.handleRetryReminder},
		{"PUT /users/{userId}/profile", h.handleSaveProfile},
		{"POST /groups/{groupId}/messages", h.handleCreateMessage},
		{"GET /groups/{groupId}/dispatches", h.handleListDispatches},
		{"GET /healthz", h.handleHealth},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, h.instrument(rt.pattern, rt.handler))
	}
}

// instrument names the server span after the route and counts requests by route pattern.
// The server span itself is opened by otelhttp around the mux.
func (h *RecordHandler) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		span.SetName(pattern)
		span.SetAttributes(attribute.String("http.route", pattern))

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r)

		metrics.HttpRequestsTotal.WithLabelValues(pattern, r.Method, strconv.Itoa(iw.statusCode)).Inc()
	})
}

func (h *RecordHandler) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.CreateReminder")
	defer span.End()

	userID := r.PathValue("userId")
	var req CreateReminderRequest
	if !h.decode(w, r, span, &req) {
		return
	}

	id, err := h.service.CreateReminder(ctx, userID, req.ToDocument())
	if err != nil {
		h.internalError(w, span, "error creating reminder", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (h *RecordHandler) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.GetReminder")
	defer span.End()

	userID, reminderID := r.PathValue("userId"), r.PathValue("reminderId")
	doc, err := h.service.GetReminder(ctx, userID, reminderID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.internalError(w, span, "error getting reminder", err, "user_id", userID, "record_id", reminderID)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *RecordHandler) handleRetryReminder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.RetryReminder")
	defer span.End()

	userID, reminderID := r.PathValue("userId"), r.PathValue("reminderId")
	outcome, err := h.service.RetryReminder(ctx, userID, reminderID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.internalError(w, span, "error retrying reminder", err, "user_id", userID, "record_id", reminderID)
		return
	}
	span.SetAttributes(attribute.String("dispatch.outcome", outcome.Label()))
	writeJSON(w, http.StatusOK, newOutcomeResponse(outcome))
}

func (h *RecordHandler) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.SaveProfile")
	defer span.End()

	userID := r.PathValue("userId")
	var req SaveProfileRequest
	if !h.decode(w, r, span, &req) {
		return
	}

	if err := h.service.SaveProfile(ctx, userID, req.ToProfile()); err != nil {
		h.internalError(w, span, "error saving profile", err, "user_id", userID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordHandler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.CreateMessage")
	defer span.End()

	groupID := r.PathValue("groupId")
	var req CreateMessageRequest
	if !h.decode(w, r, span, &req) {
		return
	}

	id, err := h.service.CreateMessage(ctx, groupID, req.ToDocument())
	if err != nil {
		h.internalError(w, span, "error creating message", err, "group_id", groupID)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// handleListDispatches handles GET /groups/{groupId}/dispatches?page=&pageSize=
func (h *RecordHandler) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ListDispatches")
	defer span.End()

	groupID := r.PathValue("groupId")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	entries, err := h.service.ListDispatches(ctx, groupID, page, pageSize)
	if err != nil {
		h.internalError(w, span, "error listing dispatches", err, "group_id", groupID)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHealth reports liveness, local leadership and the replicas currently registered.
func (h *RecordHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"leader": h.leader.IsLeader(),
	}
	nodes, err := h.nodes.Nodes(r.Context())
	if err != nil {
		h.logger.Warn("failed to list replicas", "error", err)
		resp["status"] = "degraded"
	} else {
		resp["nodes"] = nodes
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads and validates a JSON body into req, answering 400 on failure.
func (h *RecordHandler) decode(w http.ResponseWriter, r *http.Request, span trace.Span, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		span.SetStatus(codes.Error, "Failed to decode request body")
		span.RecordError(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}

	if err := h.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		var validationErrors []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				validationErrors = append(validationErrors,
					"Field '"+fe.Field()+"' failed on the '"+fe.Tag()+"' tag.",
				)
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Validation failed",
			"details": validationErrors,
		})
		return false
	}
	return true
}

func (h *RecordHandler) internalError(w http.ResponseWriter, span trace.Span, msg string, err error, args ...any) {
	span.SetStatus(codes.Error, msg)
	span.RecordError(err)
	h.logger.Error(msg, append(args, "error", err)...)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
