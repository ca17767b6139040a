package api

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// PaymentWebhook is the inbound payment-confirmation endpoint (gateway →
// core). The handler is safe under redelivery: confirmation is idempotent,
// keyed by the payment reference.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "client_input", "unreadable body")
		return
	}

	if !h.verifier.VerifySignature(body, r.Header.Get("X-Gateway-Signature")) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
		return
	}

	eventType, paymentRef, err := parseWebhookEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "client_input", "malformed event payload")
		return
	}

	if eventType != "payment_intent.succeeded" {
		// Unknown or irrelevant events are acknowledged so the gateway
		// stops redelivering them.
		zctx.From(r.Context()).Info("Ignoring gateway event", zap.String("type", eventType))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.checkout.ConfirmPayment(r.Context(), paymentRef); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// parseWebhookEvent extracts the type and payment reference from the event.
func parseWebhookEvent(body []byte) (eventType, paymentRef string, err error) {
	d := jx.DecodeBytes(body)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			v, err := d.Str()
			if err != nil {
				return err
			}
			eventType = v
		case "payment_ref":
			v, err := d.Str()
			if err != nil {
				return err
			}
			paymentRef = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return eventType, paymentRef, nil
}
