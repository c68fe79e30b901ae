package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/keydesk/keydesk/internal/auth"
	"github.com/keydesk/keydesk/internal/license"
	"github.com/keydesk/keydesk/internal/licensekey"
	"github.com/keydesk/keydesk/internal/model"
	"github.com/keydesk/keydesk/internal/repository"
)

// Listing bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Issuer issues batches of license keys.
type Issuer interface {
	Issue(ctx context.Context, count int) ([]string, error)
}

// LicenseReader reads stored license records.
type LicenseReader interface {
	GetLicenseByKey(ctx context.Context, key string) (*model.License, error)
	ListLicenses(ctx context.Context, filter model.LicenseFilter) ([]model.License, error)
	CountLicenses(ctx context.Context, unusedOnly bool) (int64, error)
}

// LicenseHandler handles license endpoints. Authorization is enforced by
// middleware before these handlers run.
type LicenseHandler struct {
	issuer   Issuer
	reader   LicenseReader
	logger   *slog.Logger
	validate *validator.Validate
}

// NewLicenseHandler creates a new LicenseHandler.
func NewLicenseHandler(issuer Issuer, reader LicenseReader, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		issuer:   issuer,
		reader:   reader,
		logger:   logger,
		validate: newValidator(),
	}
}

// Issue handles POST /api/v1/licenses.
func (h *LicenseHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req model.IssueLicensesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_COUNT", validationMessage(err))
		return
	}

	keys, err := h.issuer.Issue(r.Context(), req.Count)
	if err != nil {
		h.handleIssueError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.IssueLicensesResponse{
		Keys:  keys,
		Count: len(keys),
	})
}

// List handles GET /api/v1/licenses.
func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseLicenseFilter(w, r)
	if !ok {
		return
	}

	licenses, err := h.reader.ListLicenses(r.Context(), filter)
	if err != nil {
		h.logStoreError(r, "failed to list licenses", err)
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "License store unavailable, try again")
		return
	}

	total, err := h.reader.CountLicenses(r.Context(), filter.UnusedOnly)
	if err != nil {
		h.logStoreError(r, "failed to count licenses", err)
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "License store unavailable, try again")
		return
	}

	writeJSON(w, http.StatusOK, model.LicenseListResponse{
		Licenses: licenses,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// Get handles GET /api/v1/licenses/{key}.
func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := licensekey.Normalize(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KEY", "Key must look like XXXX-XXXX-XXXX-XXXX")
		return
	}

	lic, err := h.reader.GetLicenseByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "License not found")
			return
		}
		h.logStoreError(r, "failed to get license", err)
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "License store unavailable, try again")
		return
	}

	writeJSON(w, http.StatusOK, lic)
}

func parseLicenseFilter(w http.ResponseWriter, r *http.Request) (model.LicenseFilter, bool) {
	q := r.URL.Query()
	filter := model.LicenseFilter{Limit: defaultListLimit}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100")
			return filter, false
		}
		filter.Limit = n
	}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_OFFSET", "offset must be a non-negative integer")
			return filter, false
		}
		filter.Offset = n
	}

	if v := q.Get("unused"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_FILTER", "unused must be true or false")
			return filter, false
		}
		filter.UnusedOnly = b
	}

	return filter, true
}

func (h *LicenseHandler) handleIssueError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, license.ErrInvalidCount):
		writeError(w, http.StatusBadRequest, "INVALID_COUNT", err.Error())
	case errors.Is(err, license.ErrUniquenessViolation):
		writeError(w, http.StatusConflict, "KEY_COLLISION", "Generated key already exists, try again")
	case errors.Is(err, license.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "License store unavailable, try again")
	default:
		h.logStoreError(r, "license issue failed", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func (h *LicenseHandler) logStoreError(r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		slog.String("user_id", auth.UserIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
}
