package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

type ChoreHandler struct {
	choreStore  *store.ChoreStore
	memberStore *store.FamilyMemberStore
	hub         *websocket.Hub
	today       func() time.Time
	logger      *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, ms *store.FamilyMemberStore, hub *websocket.Hub, today func() time.Time, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{choreStore: cs, memberStore: ms, hub: hub, today: today, logger: logger}
}

func (h *ChoreHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type choreRequest struct {
	Title          string  `json:"title" validate:"required,max=200"`
	Description    string  `json:"description" validate:"max=2000"`
	CategoryID     *int64  `json:"category_id" validate:"omitempty,gt=0"`
	Points         int     `json:"points" validate:"gte=0"`
	RecurrenceRule string  `json:"recurrence_rule" validate:"required"`
	StartDate      string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	AssignmentMode string  `json:"assignment_mode" validate:"required,oneof=fixed round_robin mixed"`
	FixedAssignees []int64 `json:"fixed_assignee_ids" validate:"dive,gt=0"`
	RotationPool   []int64 `json:"round_robin_pool" validate:"dive,gt=0"`
	Active         *bool   `json:"is_active"`
}

// choreResponse adds the rule's readable form to a definition.
type choreResponse struct {
	*model.RecurringChore
	RuleDescription string `json:"recurrence_description"`
}

func respondChore(c *model.RecurringChore) choreResponse {
	return choreResponse{RecurringChore: c, RuleDescription: c.Rule.Describe()}
}

// toModel builds a definition from the request. Omitted start date and
// active flag take the values from base.
func (req choreRequest) toModel(base model.RecurringChore) (model.RecurringChore, error) {
	rule, err := recurrence.Parse(req.RecurrenceRule)
	if err != nil {
		return model.RecurringChore{}, fmt.Errorf("%w: %w", chore.ErrValidation, err)
	}

	start := base.StartDate
	if req.StartDate != "" {
		start, err = time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return model.RecurringChore{}, fmt.Errorf("%w: start_date must be a YYYY-MM-DD date", chore.ErrValidation)
		}
	}

	active := base.Active
	if req.Active != nil {
		active = *req.Active
	}

	def := model.RecurringChore{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Points:         req.Points,
		CategoryID:     req.CategoryID,
		Rule:           rule,
		StartDate:      recurrence.Day(start),
		AssignmentMode: model.AssignmentMode(req.AssignmentMode),
		FixedAssignees: req.FixedAssignees,
		RotationPool:   req.RotationPool,
		Active:         active,
	}
	return def, chore.ValidateDefinition(def)
}

// checkMembers confirms every referenced member exists.
func (h *ChoreHandler) checkMembers(ctx context.Context, def model.RecurringChore) error {
	seen := make(map[int64]bool)
	for _, id := range append(append([]int64{}, def.FixedAssignees...), def.RotationPool...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		m, err := h.memberStore.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("check family member: %w", err)
		}
		if m == nil {
			return fmt.Errorf("%w: family member %d not found", chore.ErrValidation, id)
		}
	}
	return nil
}

func (h *ChoreHandler) decodeDefinition(w http.ResponseWriter, r *http.Request, base model.RecurringChore) (model.RecurringChore, bool) {
	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.RecurringChore{}, false
	}
	def, err := req.toModel(base)
	if err == nil {
		err = h.checkMembers(r.Context(), def)
	}
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to validate chore")
		return model.RecurringChore{}, false
	}
	return def, true
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	def, ok := h.decodeDefinition(w, r, model.RecurringChore{StartDate: recurrence.Day(h.today()), Active: true})
	if !ok {
		return
	}

	created, err := h.choreStore.Create(r.Context(), def)
	if err != nil {
		h.logger.Error("failed to create chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create chore")
		return
	}

	h.broadcast(websocket.NewMessage("recurring_chore", "created", created.ID, nil))

	writeJSON(w, http.StatusCreated, respondChore(created))
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.choreStore.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list chores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chores")
		return
	}
	out := make([]choreResponse, len(chores))
	for i := range chores {
		out[i] = respondChore(&chores[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, respondChore(existing))
}

// Update replaces a definition. Occurrences already materialized keep
// their dates and assignees.
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	def, ok := h.decodeDefinition(w, r, *existing)
	if !ok {
		return
	}
	def.ID = existing.ID

	updated, err := h.choreStore.Update(r.Context(), def)
	if err != nil {
		h.logger.Error("failed to update chore", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update chore")
		return
	}

	h.broadcast(websocket.NewMessage("recurring_chore", "updated", existing.ID, nil))

	writeJSON(w, http.StatusOK, respondChore(updated))
}

func (h *ChoreHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	updated, err := h.choreStore.Deactivate(r.Context(), existing.ID)
	if err != nil {
		h.logger.Error("failed to deactivate chore", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate chore")
		return
	}

	h.broadcast(websocket.NewMessage("recurring_chore", "deactivated", existing.ID, nil))

	writeJSON(w, http.StatusOK, respondChore(updated))
}

// Delete removes a definition. With cascade_future=true its pending
// occurrences from today on go too. A definition that still has history
// is deactivated instead of removed.
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	cascade := r.URL.Query().Get("cascade_future") == "true"

	hard, err := h.choreStore.Delete(r.Context(), existing.ID, cascade, recurrence.Day(h.today()))
	if err != nil {
		h.logger.Error("failed to delete chore", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}

	action := "deleted"
	if !hard {
		action = "deactivated"
	}
	h.broadcast(websocket.NewMessage("recurring_chore", action, existing.ID, nil))

	if !hard {
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChoreHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.choreStore.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []model.ChoreCategory{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *ChoreHandler) load(w http.ResponseWriter, r *http.Request) (*model.RecurringChore, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	existing, err := h.choreStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get chore", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return nil, false
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return nil, false
	}
	return existing, true
}
