package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"delivery-marketplace/internal/common/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindConflict:            http.StatusConflict,
	apperr.KindInvalidState:        http.StatusConflict,
	apperr.KindInvalidArgument:     http.StatusBadRequest,
	apperr.KindForbidden:           http.StatusForbidden,
	apperr.KindUnauthorized:        http.StatusUnauthorized,
	apperr.KindUpstreamUnavailable: http.StatusBadGateway,
	apperr.KindInsufficientStock:   http.StatusConflict,
	apperr.KindInternal:            http.StatusInternalServerError,
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem writes a simplified RFC 7807 body.
func WriteProblem(w http.ResponseWriter, code int, typ, detail string) {
	WriteJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

// WriteError maps an application error to its status code. Internal errors hide their detail.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	code, ok := statusByKind[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	detail := err.Error()
	if kind == apperr.KindInternal {
		detail = "internal error"
	}
	WriteProblem(w, code, string(kind), detail)
}

// Decode reads a JSON body into dst and runs its validate tags.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidArgument("empty request body")
		}
		return apperr.InvalidArgument("invalid JSON body: %v", err)
	}
	return Validate(dst)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return apperr.InvalidArgument("%s", strings.Join(parts, "; "))
		}
		return apperr.InvalidArgument("%v", err)
	}
	return nil
}

// ParamInt64 reads a positive integer path parameter.
func ParamInt64(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperr.InvalidArgument("invalid %s %q", key, raw)
	}
	return n, nil
}

func AtoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
