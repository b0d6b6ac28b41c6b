package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/linemk/online-shop/internal/payment"
	"github.com/linemk/online-shop/internal/service"
	"github.com/linemk/online-shop/internal/storage"
)

const maxWebhookBody = 1 << 20

// WebhookResponse — подтверждение приёма события провайдером.
type WebhookResponse struct {
	Received bool `json:"received"`
}

type webhookError struct {
	Error string `json:"error"`
}

// PaymentWebhookHandler обрабатывает запрос POST /api/payments/webhook.
// Событие с невалидной подписью отклоняется до любых побочных эффектов.
// Валидные события неизвестных типов подтверждаются и игнорируются.
// Неизвестный payment_intent_id — аномалия: логируем и отвечаем 404,
// корзина при этом не трогается.
func PaymentWebhookHandler(log *slog.Logger, paymentService service.PaymentService, webhookSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PaymentWebhookHandler"
		logger := log.With(slog.String("op", op))

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logger.Error("failed to read webhook body", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		sig := r.Header.Get(payment.SignatureHeader)
		if err := payment.VerifySignature(body, sig, webhookSecret, payment.DefaultTolerance, time.Now()); err != nil {
			logger.Warn("webhook signature verification failed", slog.Any("error", err))
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		event, err := payment.ParseEvent(body)
		if err != nil {
			logger.Error("failed to parse webhook event", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		switch event.Type {
		case payment.EventPaymentSucceeded:
			order, err := paymentService.OnPaymentSucceeded(r.Context(), event.Data.Object.ID)
			if err != nil {
				if errors.Is(err, storage.ErrOrderNotFound) {
					logger.Warn("webhook for unknown payment intent",
						slog.String("paymentIntentID", event.Data.Object.ID))
					writeJSON(w, http.StatusNotFound, webhookError{Error: "Order not found"})
					return
				}
				logger.Error("failed to process payment event", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			logger.Info("payment confirmed via webhook",
				slog.Int64("orderID", order.ID),
				slog.String("paymentIntentID", order.PaymentIntentID),
			)
		default:
			logger.Info("ignoring webhook event", slog.String("type", event.Type))
		}

		writeJSON(w, http.StatusOK, WebhookResponse{Received: true})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
