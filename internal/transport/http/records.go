package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"agentwallet/internal/record"
	"agentwallet/internal/record/search"
	"agentwallet/internal/recordstore"
	"agentwallet/internal/wallet"
	dErrors "agentwallet/pkg/domain-errors"
	"agentwallet/pkg/platform/sentinel"
)

// RecordService is the read and delete surface of the record store.
type RecordService interface {
	Load(ctx context.Context, w recordstore.Wallet, typeName, id string) (record.Record, error)
	Find(ctx context.Context, w recordstore.Wallet, typeName string, q search.Query, opts wallet.SearchOptions) ([]record.Record, error)
	Remove(ctx context.Context, w recordstore.Wallet, typeName, id string) error
}

// RecordsHandler exposes the agent's wallet records for inspection.
type RecordsHandler struct {
	service RecordService
	wallet  recordstore.Wallet
	logger  *slog.Logger
}

func NewRecordsHandler(service RecordService, w recordstore.Wallet, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{service: service, wallet: w, logger: logger}
}

// Register mounts the record routes on r.
//
//	GET    /records/{type}?tag=k=v&after=created_at=<RFC3339>&before=..&sort=-created_at&limit=&skip=
//	GET    /records/{type}/{id}
//	DELETE /records/{type}/{id}
func (h *RecordsHandler) Register(r chi.Router) {
	r.Route("/records/{type}", func(r chi.Router) {
		r.Get("/", h.handleSearch)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *RecordsHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	typeName := chi.URLParam(r, "type")
	params := r.URL.Query()

	q, err := search.ParseFilters(params["tag"], params["after"], params["before"])
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid filter"))
		return
	}
	opts := wallet.SearchOptions{Sort: search.ParseSort(params["sort"])}
	if opts.Limit, err = intParam(params.Get("limit")); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if opts.Skip, err = intParam(params.Get("skip")); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	recs, err := h.service.Find(ctx, h.wallet, typeName, q, opts)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	views := make([]record.View, 0, len(recs))
	for _, rec := range recs {
		views = append(views, record.NewView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": views})
}

func (h *RecordsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	typeName, id := chi.URLParam(r, "type"), chi.URLParam(r, "id")

	rec, err := h.service.Load(ctx, h.wallet, typeName, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if rec == nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeNotFound, "record not found"))
		return
	}
	writeJSON(w, http.StatusOK, record.NewView(rec))
}

func (h *RecordsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Remove(ctx, h.wallet, chi.URLParam(r, "type"), chi.URLParam(r, "id")); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordsHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "record request failed", "error", err)
	}
	code := dErrors.CodeOf(err)
	if code == "" {
		code = dErrors.CodeInternal
	}
	msg := err.Error()
	var de *dErrors.Error
	if errors.As(err, &de) && status >= http.StatusInternalServerError {
		msg = de.Message
	}
	writeJSON(w, status, map[string]string{"error": string(code), "message": msg})
}

func statusFor(err error) int {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInvalidInput, dErrors.CodeTypeMismatch, dErrors.CodeInvalidState:
		return http.StatusBadRequest
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit and skip must be non-negative integers")
	}
	return n, nil
}
