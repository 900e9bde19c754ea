package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sitecraft/webhook-outbox/delivery"
)

/* HTTP layer DTOs for the delivery API
 * Separate from domain entities to avoid leaking internal structure
 */

// dispatchRequest triggers processing of a single delivery
type dispatchRequest struct {
	DeliveryID string `json:"delivery_id"`
}

// dispatchResponse reports the result of a dispatch run or sweep.
// Success means the run itself completed, not that every delivery did.
type dispatchResponse struct {
	Success   bool              `json:"success"`
	Processed int               `json:"processed"`
	Results   []delivery.Result `json:"results"`
}

// errorResponse is the body of a 500
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// enqueueRequest represents a producer inserting a new delivery
type enqueueRequest struct {
	EndpointID  string          `json:"endpoint_id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

// enqueueResponse returns the id of the stored delivery
type enqueueResponse struct {
	DeliveryID string `json:"delivery_id"`
}

// deliveryResponse represents a delivery in the API
type deliveryResponse struct {
	ID                 string          `json:"id"`
	EndpointID         string          `json:"endpoint_id"`
	EventType          string          `json:"event_type"`
	Payload            json.RawMessage `json:"payload"`
	AttemptCount       int             `json:"attempt_count"`
	MaxAttempts        int             `json:"max_attempts"`
	Status             string          `json:"status"`
	NextRetryAt        *time.Time      `json:"next_retry_at,omitempty"`
	LastAttemptAt      *time.Time      `json:"last_attempt_at,omitempty"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
	ResponseStatusCode int             `json:"response_status_code,omitempty"`
	ResponseBody       string          `json:"response_body,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// endpointResponse represents an endpoint in the API. The signing secret
// is deliberately absent.
type endpointResponse struct {
	ID               string            `json:"id"`
	URL              string            `json:"url"`
	IsActive         bool              `json:"is_active"`
	SubscribedEvents []string          `json:"subscribed_events"`
	CustomHeaders    map[string]string `json:"custom_headers,omitempty"`
	SuccessCount     int               `json:"success_count"`
	FailureCount     int               `json:"failure_count"`
	LastTriggeredAt  *time.Time        `json:"last_triggered_at,omitempty"`
	LastFailedAt     *time.Time        `json:"last_failed_at,omitempty"`
}

// postDispatch handles POST / with {"delivery_id"}
func postDispatch(service delivery.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if req.DeliveryID == "" {
			http.Error(w, "delivery_id is required", http.StatusBadRequest)
			return
		}

		results, err := service.Dispatch(r.Context(), req.DeliveryID)
		if err != nil {
			writeError(w, "dispatch failed", err)
			return
		}

		writeDispatchResponse(w, results)
	})
}

// getSweep handles GET /, the cron caller's path
func getSweep(service delivery.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results, err := service.Sweep(r.Context())
		if err != nil {
			writeError(w, "sweep failed", err)
			return
		}

		writeDispatchResponse(w, results)
	})
}

// postDelivery handles POST /v1/deliveries
func postDelivery(service delivery.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if req.EndpointID == "" || req.EventType == "" {
			http.Error(w, "endpoint_id and event_type are required", http.StatusBadRequest)
			return
		}
		if len(req.Payload) == 0 || !json.Valid(req.Payload) {
			http.Error(w, "payload must be valid JSON", http.StatusBadRequest)
			return
		}

		id, err := service.Enqueue(r.Context(), req.EndpointID, req.EventType, req.Payload, req.MaxAttempts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(enqueueResponse{DeliveryID: id}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getDelivery handles GET /v1/deliveries/{id}
func getDelivery(service delivery.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		d, err := service.GetDelivery(r.Context(), id)
		if err != nil {
			http.Error(w, fmt.Sprintf("delivery not found: %s", id), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(toDeliveryResponse(d)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getEndpoints handles GET /v1/endpoints
func getEndpoints(service delivery.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eps, err := service.ListEndpoints(r.Context())
		if err != nil {
			writeError(w, "listing endpoints failed", err)
			return
		}

		responses := make([]endpointResponse, 0, len(eps))
		for _, e := range eps {
			responses = append(responses, toEndpointResponse(e))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getEndpoint handles GET /v1/endpoints/{id}
func getEndpoint(service delivery.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		e, err := service.GetEndpoint(r.Context(), id)
		if err != nil {
			http.Error(w, fmt.Sprintf("endpoint not found: %s", id), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(toEndpointResponse(e)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func writeDispatchResponse(w http.ResponseWriter, results []delivery.Result) {
	if results == nil {
		results = []delivery.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	response := dispatchResponse{
		Success:   true,
		Processed: len(results),
		Results:   results,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, msg string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(errorResponse{
		Error:   msg,
		Details: err.Error(),
	})
}

func toDeliveryResponse(d delivery.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:                 d.ID,
		EndpointID:         d.EndpointID,
		EventType:          d.EventType,
		Payload:            d.Payload,
		AttemptCount:       d.AttemptCount,
		MaxAttempts:        d.MaxAttempts,
		Status:             d.Status.String(),
		NextRetryAt:        timePtr(d.NextRetryAt),
		LastAttemptAt:      timePtr(d.LastAttemptAt),
		DeliveredAt:        timePtr(d.DeliveredAt),
		ResponseStatusCode: d.ResponseStatusCode,
		ResponseBody:       d.ResponseBody,
		ErrorMessage:       d.ErrorMessage,
		CreatedAt:          d.CreatedAt,
	}
}

func toEndpointResponse(e delivery.Endpoint) endpointResponse {
	return endpointResponse{
		ID:               e.ID,
		URL:              e.URL,
		IsActive:         e.IsActive,
		SubscribedEvents: e.SubscribedEvents,
		CustomHeaders:    e.CustomHeaders,
		SuccessCount:     e.SuccessCount,
		FailureCount:     e.FailureCount,
		LastTriggeredAt:  timePtr(e.LastTriggeredAt),
		LastFailedAt:     timePtr(e.LastFailedAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
