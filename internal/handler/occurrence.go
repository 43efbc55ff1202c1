package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
	"github.com/dukerupert/chorewheel/internal/store"
)

// defaultWindow is used when a listing omits "to".
const defaultWindow = 7 * 24 * time.Hour

type OccurrenceHandler struct {
	materializer *chore.Materializer
	lifecycle    *chore.Lifecycle
	occurrences  *store.OccurrenceStore
	today        func() time.Time
	maxDays      int
	logger       *slog.Logger
}

// NewOccurrenceHandler wires the occurrence endpoints. today returns the
// household's current calendar date. maxDays bounds the window List
// materializes.
func NewOccurrenceHandler(m *chore.Materializer, l *chore.Lifecycle, occurrences *store.OccurrenceStore, today func() time.Time, maxDays int, logger *slog.Logger) *OccurrenceHandler {
	return &OccurrenceHandler{
		materializer: m,
		lifecycle:    l,
		occurrences:  occurrences,
		today:        today,
		maxDays:      maxDays,
		logger:       logger,
	}
}

// List materializes and returns occurrences in [from, to). With chore_id it
// covers one definition, otherwise all of them. member_id narrows the
// result to occurrences assigned to that member.
func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	today := recurrence.Day(h.today())

	from, ok, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		from = today
	}
	to, ok, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		to = from.Add(defaultWindow)
	}
	if h.maxDays > 0 && windowDays(from, to) > h.maxDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("window is longer than %d days", h.maxDays))
		return
	}

	var choreID *int64
	if raw := r.URL.Query().Get("chore_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chore_id")
			return
		}
		choreID = &id
	}

	var memberID int64
	if raw := r.URL.Query().Get("member_id"); raw != "" {
		memberID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid member_id")
			return
		}
	}

	occs, err := h.materializer.Generate(r.Context(), choreID, from, to)
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to generate occurrences")
		return
	}

	if memberID != 0 {
		all := occs
		occs = occs[:0:0]
		for _, o := range all {
			if o.IsAssigned(memberID) {
				occs = append(occs, o)
			}
		}
	}
	if occs == nil {
		occs = []model.Occurrence{}
	}

	writeJSON(w, http.StatusOK, chore.Annotate(occs, today))
}

// ListForMember returns a member's stored occurrences in [from, to)
// without materializing anything.
func (h *OccurrenceHandler) ListForMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	today := recurrence.Day(h.today())
	from, ok, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		from = today
	}
	to, ok, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		to = from.Add(defaultWindow)
	}

	occs, err := h.occurrences.ListByAssignee(r.Context(), id, from, to)
	if err != nil {
		h.logger.Error("list occurrences by assignee", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list occurrences")
		return
	}
	if occs == nil {
		occs = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, chore.Annotate(occs, today))
}

func (h *OccurrenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	occ, err := h.occurrences.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get occurrence", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get occurrence")
		return
	}
	if occ == nil {
		writeError(w, http.StatusNotFound, "occurrence not found")
		return
	}
	writeJSON(w, http.StatusOK, chore.WithStatus{Occurrence: *occ, Overdue: chore.IsOverdue(*occ, h.today())})
}

func (h *OccurrenceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	actor, _ := auth.FromContext(r.Context())

	occ, err := h.lifecycle.Complete(r.Context(), id, actor)
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to complete occurrence")
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

type skipRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *OccurrenceHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req skipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := auth.FromContext(r.Context())

	occ, err := h.lifecycle.Skip(r.Context(), id, actor, req.Reason)
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to skip occurrence")
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

func (h *OccurrenceHandler) Unskip(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	occ, err := h.lifecycle.Unskip(r.Context(), id)
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to unskip occurrence")
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

// windowDays is the length of [from, to) in calendar days.
func windowDays(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / (24 * 60 * 60))
}
