package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Kowshalya-Eswar/agrofarm/api/responses"
	"github.com/Kowshalya-Eswar/agrofarm/internal/reconciler"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
)

// SignatureHeader carries the provider's HMAC over the raw request body.
const SignatureHeader = "Square-Signature"

type paymentEventHandler interface {
	HandleEvent(ctx context.Context, event reconciler.Event) error
}

type signingClient interface {
	SigningSecret() string
}

type paymentWebhookPayload struct {
	EventID string           `json:"event_id"`
	Type    string           `json:"type"`
	Data    reconciler.Event `json:"data"`
}

// PaymentWebhook ingests provider payment callbacks. The signature is
// validated over the exact raw body before any state is read or written;
// a verified event flows through the same reconciler as broker messages.
func PaymentWebhook(handler paymentEventHandler, client signingClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if handler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment provider client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(SignatureHeader)
		if !ValidSignature(payload, client.SigningSecret(), signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "invalid webhook signature"))
			return
		}

		var event paymentWebhookPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload"))
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"webhook_event_id": event.EventID,
				"webhook_type":     event.Type,
			})
		}

		if err := handler.HandleEvent(ctx, event.Data); err != nil {
			// Non-2xx so the provider retries the delivery.
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// ValidSignature checks the hex-encoded HMAC-SHA256 of the raw body.
func ValidSignature(payload []byte, secret, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
