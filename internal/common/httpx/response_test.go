package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-marketplace/internal/common/apperr"
)

func TestWriteErrorStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
		typ  string
	}{
		{apperr.NotFound("order 1"), http.StatusNotFound, "not_found"},
		{apperr.Conflict("already assigned"), http.StatusConflict, "conflict"},
		{apperr.InvalidState("delivered"), http.StatusConflict, "invalid_state"},
		{apperr.InvalidArgument("rating"), http.StatusBadRequest, "invalid_argument"},
		{apperr.Forbidden("not your delivery"), http.StatusForbidden, "forbidden"},
		{apperr.Unauthorized("signature"), http.StatusUnauthorized, "unauthorized"},
		{apperr.Upstream("gateway", errors.New("down")), http.StatusBadGateway, "upstream_unavailable"},
		{errors.New("pq: something"), http.StatusInternalServerError, "internal"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, c.err)
		assert.Equal(t, c.code, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, c.typ, body["type"])
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("dial tcp 10.0.0.3:5432: refused"))
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

type rateReq struct {
	Rating *int `json:"rating" validate:"omitempty,min=1,max=5"`
}

func TestDecodeValidates(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":9}`))
	var req rateReq
	err := Decode(r, &req)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":4}`))
	req = rateReq{}
	require.NoError(t, Decode(r, &req))
	assert.Equal(t, 4, *req.Rating)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, Decode(r, &req), apperr.ErrInvalidArgument)
}
