package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorewheel/internal/chore"
)

func TestWriteEngineError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: title is required", chore.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: occurrence 4", chore.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: member 2", chore.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("%w: cannot skip a completed occurrence", chore.ErrInvalidState), http.StatusConflict},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeEngineError(rec, logger, tt.err, "failed")
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}

	rec := httptest.NewRecorder()
	writeEngineError(rec, logger, errors.New("disk I/O error"), "failed to complete occurrence")
	assert.JSONEq(t, `{"error":"failed to complete occurrence"}`, rec.Body.String(), "internal details stay out of the response")
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) (choreRequest, error) {
		var req choreRequest
		err := decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(body)), &req)
		return req, err
	}

	req, err := decode(`{"title":"Dishes","recurrence_rule":"FREQ=DAILY","assignment_mode":"fixed","fixed_assignee_ids":[1]}`)
	require.NoError(t, err)
	assert.Equal(t, "Dishes", req.Title)

	_, err = decode(`{"title":`)
	assert.EqualError(t, err, "invalid JSON")

	_, err = decode(`{"recurrence_rule":"FREQ=DAILY","assignment_mode":"weekly"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "assignment_mode must be one of")

	_, err = decode(`{"title":"x","recurrence_rule":"FREQ=DAILY","assignment_mode":"fixed","start_date":"01/02/2024"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a YYYY-MM-DD date")

	var skip skipRequest
	assert.NoError(t, decodeJSON(httptest.NewRequest("POST", "/", nil), &skip), "empty body")
}

func TestParseDateParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/?from=2024-02-29&to=tomorrow", nil)

	from, ok, err := parseDateParam(r, "from")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-02-29", from.Format(dateLayout))

	_, _, err = parseDateParam(r, "to")
	assert.Error(t, err)

	_, ok, err = parseDateParam(r, "missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}
