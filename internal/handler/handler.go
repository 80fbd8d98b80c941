package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pochkachaiki/envgen/internal/metrics"
	"github.com/pochkachaiki/envgen/internal/models/reading"
	"github.com/pochkachaiki/envgen/internal/queue"
	"github.com/pochkachaiki/envgen/internal/storage"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	collection storage.Inserter
	publisher  queue.Publisher
	queueName  string
	metrics    *metrics.Controller
}

func New(collection storage.Inserter, publisher queue.Publisher, queueName string, m *metrics.Controller) *Handler {
	return &Handler{
		collection: collection,
		publisher:  publisher,
		queueName:  queueName,
		metrics:    m,
	}
}

// HandleReading stores a posted reading and forwards it to the queue.
func (h *Handler) HandleReading(w http.ResponseWriter, r *http.Request) {
	var rd reading.Reading
	if err := json.NewDecoder(r.Body).Decode(&rd); err != nil {
		slog.Error("decode error", "err", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if rd.SensorID == "" || rd.Timestamp == "" {
		slog.Error("validation error", "reading", rd)
		http.Error(w, "invalid reading", http.StatusBadRequest)
		return
	}

	if _, err := time.Parse(time.RFC3339, rd.Timestamp); err != nil {
		slog.Error("timestamp parse error", "err", err)
		http.Error(w, "invalid timestamp", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, err := h.collection.InsertOne(ctx, rd); err != nil {
		slog.Error("mongo insert error", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := json.Marshal(rd)
	if err != nil {
		slog.Error("marshal for rabbit error", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := queue.PublishJSON(ctx, h.publisher, h.queueName, body); err != nil {
		slog.Error("rabbit publish error", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.metrics.Ingested()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Routes wires the controller endpoints, counting requests per route.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /readings", h.metrics.WrapHandler("/readings", http.HandlerFunc(h.HandleReading)))
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	return mux
}
