package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ptdat4/stocktalk/internal/core/service"
)

type HTTPHandler struct {
	tracker *service.Tracker
	hub     *EventHub
}

type CommandRequest struct {
	Transcript string `json:"transcript"`
}

type CommandResponse struct {
	Success    bool   `json:"success"`
	Outcome    string `json:"outcome"`
	Status     string `json:"status"`
	Transcript string `json:"transcript"`
	ItemID     int64  `json:"item_id,omitempty"`
	ItemName   string `json:"item_name,omitempty"`
	Before     int    `json:"before"`
	After      int    `json:"after"`
	LowStock   bool   `json:"low_stock"`
}

type ItemResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Quantity          int       `json:"quantity"`
	Unit              string    `json:"unit"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	LastUpdated       time.Time `json:"last_updated"`
}

type RegisterItemRequest struct {
	Name              string `json:"name"`
	Quantity          int    `json:"quantity"`
	Unit              string `json:"unit"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type QuantityResponse struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewHTTPHandler wires the API surface. hub may be nil when no event
// broadcasting is wanted.
func NewHTTPHandler(tracker *service.Tracker, hub *EventHub) *HTTPHandler {
	return &HTTPHandler{tracker: tracker, hub: hub}
}

// Command accepts one final transcript and reconciles it against the
// ledger. Every outcome returns a displayable status; only an applied
// command mutates anything.
func (h *HTTPHandler) Command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.Transcript == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "transcript is required"})
		return
	}

	result := h.tracker.Apply(r.Context(), req.Transcript)
	if result.Err != nil {
		log.Printf("command %q: %v", req.Transcript, result.Err)
	}

	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type:       "command",
			Outcome:    string(result.Outcome),
			Status:     result.Status,
			Transcript: result.Transcript,
			ItemID:     result.ItemID,
			LowStock:   result.LowStock,
		})
	}

	writeJSON(w, statusCode(result.Outcome), CommandResponse{
		Success:    result.Outcome == service.OutcomeApplied,
		Outcome:    string(result.Outcome),
		Status:     result.Status,
		Transcript: result.Transcript,
		ItemID:     result.ItemID,
		ItemName:   result.ItemName,
		Before:     result.Before,
		After:      result.After,
		LowStock:   result.LowStock,
	})
}

// Items lists the ledger on GET and registers a new item on POST.
func (h *HTTPHandler) Items(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items := h.tracker.Items()
		resp := make([]ItemResponse, len(items))
		for i, item := range items {
			resp[i] = ItemResponse{
				ID:                item.ID,
				Name:              item.Name,
				Quantity:          item.Quantity,
				Unit:              item.Unit,
				LowStockThreshold: item.LowStockThreshold,
				LowStock:          item.LowStock(),
				LastUpdated:       item.LastUpdated,
			}
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodPost:
		var req RegisterItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
			return
		}

		item, err := h.tracker.Register(r.Context(), req.Name, req.Unit, req.Quantity, req.LowStockThreshold)
		if err != nil {
			log.Printf("register item %q: %v", req.Name, err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
			return
		}

		writeJSON(w, http.StatusCreated, ItemResponse{
			ID:                item.ID,
			Name:              item.Name,
			Quantity:          item.Quantity,
			Unit:              item.Unit,
			LowStockThreshold: item.LowStockThreshold,
			LowStock:          item.LowStock(),
			LastUpdated:       item.LastUpdated,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Quantity reports the current count for a single item. It reads the
// cache mirror when one is wired and falls back to the in-memory ledger.
func (h *HTTPHandler) Quantity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	itemID, err := strconv.ParseInt(r.URL.Query().Get("item"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "item must be a numeric id"})
		return
	}

	quantity, err := h.tracker.Quantity(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownItem) {
			writeJSON(w, http.StatusNotFound, errorResponse{Message: "item not found"})
			return
		}
		log.Printf("quantity %d: %v", itemID, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Message: "quantity lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, QuantityResponse{ItemID: itemID, Quantity: quantity})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusCode(outcome service.Outcome) int {
	switch outcome {
	case service.OutcomeApplied:
		return http.StatusOK
	case service.OutcomeUnrecognized:
		return http.StatusUnprocessableEntity
	case service.OutcomeNotFound:
		return http.StatusNotFound
	case service.OutcomeDuplicate:
		return http.StatusConflict
	case service.OutcomeStoreFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
