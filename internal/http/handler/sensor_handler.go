package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/http/response"
	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/service"
)

type SensorHandler struct {
	readings *service.ReadingService
}

func NewSensorHandler(readings *service.ReadingService) *SensorHandler {
	return &SensorHandler{readings: readings}
}

type ingestRequest struct {
	Temperature *float64 `json:"temperatura" validate:"required"`
	Humidity    *float64 `json:"humedad" validate:"required"`
	Gas         *float64 `json:"gas" validate:"required"`
	DeviceID    string   `json:"esp32_id" validate:"omitempty,max=50"`
}

// Ingest accepts a sample from a device. Devices do not authenticate; the
// endpoint sits behind the API rate limiter instead.
func (h *SensorHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reading := &domain.Reading{
		Temperature: *req.Temperature,
		Humidity:    *req.Humidity,
		Gas:         *req.Gas,
		DeviceID:    req.DeviceID,
	}
	if err := h.readings.Ingest(r.Context(), reading); err != nil {
		if errors.Is(err, service.ErrReadingOutOfRange) {
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "reading not stored", nil)
		return
	}
	response.Msg(w, r, http.StatusCreated, "reading stored", reading)
}

func (h *SensorHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("limit"))

	filter := repository.ReadingFilter{DeviceID: q.Get("esp32_id")}
	if since := q.Get("desde"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "desde must be RFC 3339", nil)
			return
		}
		filter.Since = ts
	}
	if until := q.Get("hasta"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "hasta must be RFC 3339", nil)
			return
		}
		filter.Until = ts
	}

	result, err := h.readings.List(repository.PageRequest{Page: page, PageSize: pageSize}, filter)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "reading listing failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *SensorHandler) Latest(w http.ResponseWriter, r *http.Request) {
	reading, err := h.readings.Latest(r.URL.Query().Get("esp32_id"))
	if err != nil {
		if errors.Is(err, repository.ErrReadingNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no readings yet", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "latest reading lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, reading)
}

func (h *SensorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := h.readings.Stats(q.Get("esp32_id"), q.Get("periodo"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

// Cleanup deletes readings older than ?dias= days. Admin only.
func (h *SensorHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("dias"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "dias must be an integer", nil)
			return
		}
		days = parsed
	}

	deleted, err := h.readings.Cleanup(days)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	observability.Audit(r, "sensors.cleanup", "days", days, "deleted", deleted)
	response.Msg(w, r, http.StatusOK, "old readings deleted", map[string]int64{"deleted": deleted})
}
