package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/preppal/prep-assistant/internal/core"
	"github.com/preppal/prep-assistant/internal/store"
)

type APIHandler struct {
	repo      store.Repository
	identity  *core.IdentityResolver
	registry  *core.Registry
	jwtSecret string
}

func NewAPIHandler(repo store.Repository, identity *core.IdentityResolver, registry *core.Registry, jwtSecret string) *APIHandler {
	return &APIHandler{repo: repo, identity: identity, registry: registry, jwtSecret: jwtSecret}
}

type errorResponse struct {
	Error    string         `json:"error"`
	Exchange *core.Exchange `json:"exchange,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	var genErr *core.GenerationError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyExists), errors.Is(err, core.ErrSendInFlight):
		return http.StatusConflict
	case errors.Is(err, core.ErrGuestMode):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrNoChecklistPayload):
		return http.StatusBadRequest
	case errors.As(err, &genErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *APIHandler) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Identity

func (h *APIHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if caller.Guest() {
		h.respondErr(w, core.ErrGuestMode)
		return
	}
	if caller.User == nil {
		writeError(w, http.StatusNotFound, errOnboardingRequired)
		return
	}
	writeJSON(w, http.StatusOK, caller.User)
}

func (h *APIHandler) OnboardingHandler(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if caller.Guest() {
		writeError(w, http.StatusUnauthorized, "Authorization header is required")
		return
	}

	var req core.OnboardingFields
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.identity.CreateFromOnboarding(r.Context(), caller.ExternalID, caller.Email, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if caller.User == nil {
		h.respondErr(w, core.ErrGuestMode)
		return
	}

	var req core.OnboardingFields
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.identity.UpdateProfile(r.Context(), caller.User.ID, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Chats

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	chat := h.workspace(r).Chat
	if err := chat.EnsureLoaded(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat.Snapshot())
}

func (h *APIHandler) LoadChatsHandler(w http.ResponseWriter, r *http.Request) {
	chat := h.workspace(r).Chat
	if err := chat.LoadSessions(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat.Snapshot())
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	chat := h.workspace(r).Chat
	if err := chat.EnsureLoaded(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	if _, err := chat.CreateSession(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat.Snapshot())
}

func (h *APIHandler) SelectChatHandler(w http.ResponseWriter, r *http.Request) {
	chat := h.workspace(r).Chat
	if err := chat.EnsureLoaded(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	if err := chat.SelectSession(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat.Snapshot())
}

func (h *APIHandler) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	chat := h.workspace(r).Chat
	if err := chat.EnsureLoaded(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	if err := chat.DeleteSession(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat.Snapshot())
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	chat := h.workspace(r).Chat
	if err := chat.EnsureLoaded(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}

	exchange, err := chat.SendMessage(r.Context(), req.Content)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Printf("Error posting message: %v", err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), Exchange: exchange})
		return
	}
	writeJSON(w, http.StatusOK, exchange)
}

// Checklists

func (h *APIHandler) PromoteMessageHandler(w http.ResponseWriter, r *http.Request) {
	checklist, err := h.workspace(r).Checklists.Promote(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checklist)
}

func (h *APIHandler) ListChecklistsHandler(w http.ResponseWriter, r *http.Request) {
	checklists, err := h.workspace(r).Checklists.List(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklists)
}

func (h *APIHandler) CreateChecklistHandler(w http.ResponseWriter, r *http.Request) {
	var req store.ChecklistPayload
	if !decodeBody(w, r, &req) {
		return
	}
	checklist, err := h.workspace(r).Checklists.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checklist)
}

func (h *APIHandler) DeleteChecklistHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace(r).Checklists.Delete(r.Context(), chi.URLParam(r, "checklistID")); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ToggleChecklistItemHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.workspace(r).Ledger.ToggleChecklistItem(r.Context(),
		chi.URLParam(r, "checklistID"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Tasks

func (h *APIHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	ledger := h.registry.Catalog()
	if caller := callerFromContext(r.Context()); caller.User != nil {
		ledger = h.registry.ForUser(caller.User).Ledger
	}
	tasks, err := ledger.Tasks(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *APIHandler) CompleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.workspace(r).Ledger.CompleteTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) UncompleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.workspace(r).Ledger.UncompleteTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
