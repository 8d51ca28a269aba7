package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"procure/internal/metrics"
	"procure/internal/rolesession"
	"procure/internal/security/password"
	"procure/models"
)

// Fees - комиссии платформы из конфигурации
type Fees struct {
	BidServicePercent float64
	Reveal            float64
}

// Handler оборачивает Storage и сессии ролей для HTTP-обработчиков
type Handler struct {
	Store    StorageInterface
	Sessions *rolesession.Manager
	Metrics  *metrics.Metrics
	Log      *slog.Logger
	Fees     Fees

	hasher password.Hasher
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, sessions *rolesession.Manager, m *metrics.Metrics, log *slog.Logger, fees Fees) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		Store:    store,
		Sessions: sessions,
		Metrics:  m,
		Log:      log,
		Fees:     fees,
		hasher:   password.Default(),
	}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1048576

// readJSON читает тело запроса с ограничением размера
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return models.E("readBody", models.ErrInvalidInput, "failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return models.E("readBody", models.ErrInvalidInput, "invalid JSON format")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError пишет ошибку в формате {"reason"}. Непредвиденные ошибки
// логируются, клиенту уходит общее сообщение.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := models.ToErrorResponse(err)
	if resp.StatusCode >= http.StatusInternalServerError {
		h.Log.Error("http.request.failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, resp.StatusCode, resp)
}

func badRequest(op, msg string) error {
	return models.E(op, models.ErrInvalidInput, msg)
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 5 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// actor находит пользователя по параметру userId. Неизвестный id - 403.
func (h *Handler) actor(r *http.Request) (*models.User, error) {
	id := strings.TrimSpace(r.URL.Query().Get("userId"))
	if id == "" {
		return nil, badRequest("actor", "missing userId parameter")
	}
	u, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.E("actor", models.ErrForbidden, "")
		}
		return nil, err
	}
	return u, nil
}

// audit пишет событие в лог и, по возможности, в хранилище
func (h *Handler) audit(ctx context.Context, action, actorID string, reason string, meta map[string]any) {
	attrs := []any{"actor_id", actorID}
	if reason != "" {
		attrs = append(attrs, "reason", reason)
	}
	for k, v := range meta {
		attrs = append(attrs, k, v)
	}
	h.Log.Info(action, attrs...)

	e := &models.AuditEvent{Action: action}
	if actorID != "" {
		e.ActorID = &actorID
	}
	if reason != "" {
		e.Reason = &reason
	}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			e.Meta = &s
		}
	}
	if err := h.Store.InsertAudit(ctx, e); err != nil {
		h.Log.Error("audit.insert.failed", "action", action, "err", err)
	}
}

// outcome - метка результата для метрик
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrForbidden):
		return "forbidden"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
