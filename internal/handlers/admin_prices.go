package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getreststore/api/internal/platform/httpx"
	"github.com/getreststore/api/internal/services"
)

const (
	maxPricesBodySize  = 4 * 1024 * 1024
	maxUploadMemory    = 8 * 1024 * 1024
	spreadsheetMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	templateFileName   = "template.xlsx"
	uploadFileField    = "file"
	legacyPasswordForm = "password"
)

// AdminPriceHandlers exposes the price editor: wholesale read/replace of the
// Price Store plus spreadsheet import and template export.
type AdminPriceHandlers struct {
	prices         services.PriceAdminService
	uploadPassword string
}

// NewAdminPriceHandlers constructs the price editor handlers. The upload
// password guards only the legacy unauthenticated upload route.
func NewAdminPriceHandlers(prices services.PriceAdminService, uploadPassword string) *AdminPriceHandlers {
	return &AdminPriceHandlers{
		prices:         prices,
		uploadPassword: uploadPassword,
	}
}

// Routes wires the /admin/prices endpoints onto the provided router.
func (h *AdminPriceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/prices", h.listPrices)
	r.Put("/prices", h.replacePrices)
	r.Post("/prices/upload", h.uploadPrices)
	r.Get("/prices/template", h.exportTemplate)
}

// LegacyRoutes registers the pre-session upload endpoint kept for older
// admin tooling. It authenticates with a form password instead of a cookie.
func (h *AdminPriceHandlers) LegacyRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/update-prices", h.legacyUpdatePrices)
}

func (h *AdminPriceHandlers) listPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.prices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("price_admin_unavailable", "price admin service is unavailable", http.StatusServiceUnavailable))
		return
	}

	records, err := h.prices.ListPrices(ctx)
	if err != nil {
		h.writePriceAdminError(ctx, w, err)
		return
	}
	if records == nil {
		records = []services.PriceRecord{}
	}
	writeJSONResponse(w, http.StatusOK, records)
}

func (h *AdminPriceHandlers) replacePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.prices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("price_admin_unavailable", "price admin service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxPricesBodySize)
	if err != nil {
		h.writeBodyError(ctx, w, err)
		return
	}

	var records []services.PriceRecord
	if err := json.Unmarshal(body, &records); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payload must be a JSON array of price records", http.StatusBadRequest))
		return
	}

	count, err := h.prices.ReplacePrices(ctx, records)
	if err != nil {
		h.writePriceAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   count,
	})
}

func (h *AdminPriceHandlers) uploadPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.prices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("price_admin_unavailable", "price admin service is unavailable", http.StatusServiceUnavailable))
		return
	}
	h.importUpload(ctx, w, r)
}

func (h *AdminPriceHandlers) legacyUpdatePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.prices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("price_admin_unavailable", "price admin service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart form is required", http.StatusBadRequest))
		return
	}

	password := r.FormValue(legacyPasswordForm)
	if h.uploadPassword == "" || subtle.ConstantTimeCompare([]byte(password), []byte(h.uploadPassword)) != 1 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "upload password is incorrect", http.StatusUnauthorized))
		return
	}

	h.importUpload(ctx, w, r)
}

func (h *AdminPriceHandlers) importUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	file, header, err := h.openUpload(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	defer file.Close()

	if contentType := header.Header.Get("Content-Type"); contentType != "" && contentType != spreadsheetMIME {
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_media_type", "only xlsx spreadsheets are accepted", http.StatusUnsupportedMediaType))
		return
	}

	updated, err := h.prices.ImportSpreadsheet(ctx, file)
	if err != nil {
		h.writePriceAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"updated": updated,
	})
}

func (h *AdminPriceHandlers) openUpload(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return nil, nil, errors.New("multipart form is required")
		}
	}
	file, header, err := r.FormFile(uploadFileField)
	if err != nil {
		return nil, nil, errors.New("file field is required")
	}
	return file, header, nil
}

func (h *AdminPriceHandlers) exportTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.prices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("price_admin_unavailable", "price admin service is unavailable", http.StatusServiceUnavailable))
		return
	}

	data, err := h.prices.ExportTemplate(ctx)
	if err != nil {
		h.writePriceAdminError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", spreadsheetMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+templateFileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *AdminPriceHandlers) writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func (h *AdminPriceHandlers) writePriceAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPriceAdminInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPriceAdminUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("price_store_error", "failed to access the price store", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("price_admin_error", "price update failed", http.StatusInternalServerError))
	}
}
