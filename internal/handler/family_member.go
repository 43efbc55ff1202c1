package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

const (
	defaultColor = "#3B82F6"
	defaultEmoji = "😀"
)

type FamilyMemberHandler struct {
	store  *store.FamilyMemberStore
	ledger *store.LedgerStore
	logger *slog.Logger
}

func NewFamilyMemberHandler(s *store.FamilyMemberStore, ledger *store.LedgerStore, logger *slog.Logger) *FamilyMemberHandler {
	return &FamilyMemberHandler{store: s, ledger: ledger, logger: logger}
}

type memberRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Role        string `json:"role" validate:"omitempty,oneof=parent child"`
	Color       string `json:"color" validate:"omitempty,hexcolor,len=7"`
	AvatarEmoji string `json:"avatar_emoji"`
}

func (h *FamilyMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list family members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list family members")
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *FamilyMemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Role == "" {
		req.Role = string(model.RoleChild)
	}
	if req.Color == "" {
		req.Color = defaultColor
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = defaultEmoji
	}

	exists, err := h.store.NameExists(r.Context(), req.Name, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "a family member with that name already exists")
		return
	}

	member, err := h.store.Create(r.Context(), req.Name, model.Role(req.Role), req.Color, req.AvatarEmoji)
	if err != nil {
		h.logger.Error("failed to create family member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family member")
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

func (h *FamilyMemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Role == "" {
		req.Role = string(existing.Role)
	}
	if req.Color == "" {
		req.Color = existing.Color
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = existing.AvatarEmoji
	}

	exists, err := h.store.NameExists(r.Context(), req.Name, existing.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "a family member with that name already exists")
		return
	}

	member, err := h.store.Update(r.Context(), existing.ID, req.Name, model.Role(req.Role), req.Color, req.AvatarEmoji)
	if err != nil {
		h.logger.Error("failed to update family member", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update family member")
		return
	}

	writeJSON(w, http.StatusOK, member)
}

func (h *FamilyMemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), existing.ID); err != nil {
		if errors.Is(err, store.ErrMemberInUse) {
			writeError(w, http.StatusConflict, "family member is still assigned to active chores or pending occurrences")
			return
		}
		h.logger.Error("failed to delete family member", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete family member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type pinRequest struct {
	PIN string `json:"pin" validate:"required,len=4,numeric"`
}

func (h *FamilyMemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req pinRequest
	if err := decodeJSON(r, &req); err != nil || !isDigits(req.PIN) {
		writeError(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash PIN")
		return
	}

	if err := h.store.SetPIN(r.Context(), existing.ID, string(hash)); err != nil {
		h.logger.Error("failed to set PIN", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *FamilyMemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.store.ClearPIN(r.Context(), existing.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}

// Points returns the member's lifetime point total.
func (h *FamilyMemberHandler) Points(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.GetPointBalance(r.Context(), existing.ID)
	if err != nil {
		h.logger.Error("failed to get point balance", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get point balance")
		return
	}
	if balance == nil {
		balance = &model.PointBalance{MemberID: existing.ID, MemberName: existing.Name}
	}

	writeJSON(w, http.StatusOK, balance)
}

// Leaderboard returns every member's point total.
func (h *FamilyMemberHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledger.GetAllPointBalances(r.Context())
	if err != nil {
		h.logger.Error("failed to get point balances", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get point balances")
		return
	}
	if balances == nil {
		balances = []model.PointBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *FamilyMemberHandler) load(w http.ResponseWriter, r *http.Request) (*model.FamilyMember, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get family member")
		return nil, false
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "family member not found")
		return nil, false
	}
	return existing, true
}
