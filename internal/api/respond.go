package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/stock"
)

// errorBody is the error envelope: exactly one specific, actionable category
// per failure. Internal errors are never leaked verbatim.
type errorBody struct {
	Error struct {
		Kind   string          `json:"kind"`
		Detail string          `json:"detail"`
		Items  []shortfallBody `json:"items,omitempty"`
	} `json:"error"`
}

type shortfallBody struct {
	VariantID string `json:"variant_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, detail string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Detail = detail
	writeJSON(w, status, body)
}

// writeDomainError maps a domain error to its HTTP category.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid      *order.InvalidInputError
		mismatch     *catalog.MismatchError
		insufficient *stock.InsufficientError
		transition   *order.TransitionError
		gatewayErr   *payment.GatewayError
		persistence  *order.PersistenceError
	)

	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "client_input", invalid.Error())

	case errors.As(err, &mismatch):
		writeError(w, http.StatusUnprocessableEntity, "catalog_mismatch", mismatch.Error())

	case errors.As(err, &insufficient):
		var body errorBody
		body.Error.Kind = "stock"
		body.Error.Detail = insufficient.Error()
		for _, s := range insufficient.Shortfalls {
			body.Error.Items = append(body.Error.Items, shortfallBody{
				VariantID: s.VariantID,
				Requested: s.Requested,
				Available: s.Available,
			})
		}
		writeJSON(w, http.StatusConflict, body)

	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "illegal_transition", transition.Error())

	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "order not found")

	case errors.As(err, &gatewayErr):
		zctx.From(r.Context()).Error("Gateway failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "gateway", "payment gateway unavailable")

	case errors.As(err, &persistence):
		zctx.From(r.Context()).Error("Persistence failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "persistence", "internal error")

	default:
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
