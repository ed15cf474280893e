package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sdko-org/filebed-relay/internal/admin"
	"github.com/sdko-org/filebed-relay/internal/config"
	"github.com/sdko-org/filebed-relay/internal/ledger"
	"github.com/sdko-org/filebed-relay/internal/relay"
	"github.com/sdko-org/filebed-relay/internal/telegram"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	cfg     *config.Config
	relay   *relay.Relay
	ledger  *ledger.Ledger
	console *admin.Console
	tg      *telegram.Client
	log     *logrus.Entry
}

func NewHandler(logger *logrus.Logger, cfg *config.Config, rel *relay.Relay, l *ledger.Ledger, console *admin.Console, tg *telegram.Client) *Handler {
	return &Handler{
		cfg:     cfg,
		relay:   rel,
		ledger:  l,
		console: console,
		tg:      tg,
		log:     logger.WithField("component", "webhook_handler"),
	}
}

func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/", h.HandleWebhook).Methods("POST")
	r.HandleFunc("/setup-webhook", h.HandleSetupWebhook).Methods("GET")
}

// HandleWebhook is the single inbound endpoint: one Bot API update per POST.
// Per-attachment errors never reach this level; the recover here is the last
// line for truly unexpected failures and best-effort notifies an admin.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer func() {
		if rec := recover(); rec != nil {
			h.log.WithField("panic", rec).Error("Unhandled error in webhook handler")
			if h.cfg.ErrorChatID != 0 {
				notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_, _ = h.tg.SendMessage(notifyCtx, h.cfg.ErrorChatID,
					fmt.Sprintf("Internal error while handling an update: %v", rec))
			}
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}()

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil || update.Message == nil {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	h.dispatch(ctx, update.Message)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleSetupWebhook registers this deployment's public URL with the Bot
// API. One-time setup, not part of normal traffic.
func (h *Handler) HandleSetupWebhook(w http.ResponseWriter, r *http.Request) {
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	webhookURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	if err := h.tg.SetWebhook(r.Context(), webhookURL); err != nil {
		h.log.WithError(err).Error("Webhook registration failed")
		http.Error(w, fmt.Sprintf("Webhook registration failed: %v", err), http.StatusInternalServerError)
		return
	}

	h.log.WithField("url", webhookURL).Info("Webhook registered")
	fmt.Fprintf(w, "Webhook registered: %s", webhookURL)
}
