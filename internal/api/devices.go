package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-huebridge/internal/bridge"
	"github.com/nerrad567/gray-logic-huebridge/internal/controller"
	"github.com/nerrad567/gray-logic-huebridge/internal/device"
)

// DeviceRow is one slot of the spoken device table.
type DeviceRow struct {
	Index      int    `json:"index"`
	Empty      bool   `json:"empty,omitempty"`
	Type       string `json:"type,omitempty"`
	ID         string `json:"id,omitempty"`
	NodeName   string `json:"node_name,omitempty"`
	SceneID    string `json:"scene_id,omitempty"`
	SceneName  string `json:"scene_name,omitempty"`
	SpokenName string `json:"spoken_name,omitempty"`
	IsScene    bool   `json:"is_scene,omitempty"`
	On         bool   `json:"on"`
	Brightness uint8  `json:"bri"`
}

// StateRequest is the body of PUT /devices/{index}/state. Bri takes
// precedence over On when both are given.
type StateRequest struct {
	On  *bool `json:"on,omitempty"`
	Bri *int  `json:"bri,omitempty"`
}

func newDeviceRow(index int, h *device.Handler) DeviceRow {
	if h == nil {
		return DeviceRow{Index: index, Empty: true}
	}
	on, bri := h.State()
	row := DeviceRow{
		Index:      index,
		Type:       h.Kind().String(),
		ID:         h.ID(),
		NodeName:   h.Entity().Name(),
		SpokenName: h.Name(),
		IsScene:    h.IsScene(),
		On:         on,
		Brightness: bri,
	}
	if scene := h.Scene(); scene != nil {
		row.SceneID = scene.Address()
		row.SceneName = scene.Name()
	}
	return row
}

// handleListDevices returns every slot, occupied or not, in index order.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	handlers := s.bridge.Registry().Handlers()
	rows := make([]DeviceRow, 0, len(handlers))
	for i, h := range handlers {
		rows = append(rows, newDeviceRow(i, h))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": rows,
		"count":   s.bridge.DeviceCount(),
		"slots":   len(rows),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	index, h, ok := s.lookupSlot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newDeviceRow(index, h))
}

// handleSetDeviceState drives a slot the way the emulation layer would.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	index, h, ok := s.lookupSlot(w, r)
	if !ok {
		return
	}

	var req StateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var err error
	switch {
	case req.Bri != nil:
		if *req.Bri < 0 || *req.Bri > int(device.MaxBrightness) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "bri must be between 0 and 255")
			return
		}
		err = h.SetBrightness(r.Context(), uint8(*req.Bri))
	case req.On != nil && *req.On:
		err = h.SetOn(r.Context())
	case req.On != nil:
		err = h.SetOff(r.Context())
	default:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "one of on or bri is required")
		return
	}

	if err != nil {
		s.logger.Warn("device command failed", "index", index, "id", h.ID(), "error", err)
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDeviceRow(index, h))
}

// handleRefresh rescans the controller tree.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.bridge.Refresh(r.Context())
	last := s.bridge.LastRefresh()

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"devices": last.Devices,
			"slots":   s.bridge.Registry().Count(),
			"took_ms": last.Took.Milliseconds(),
		})
	case errors.Is(err, bridge.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, bridge.ErrEmptyTree):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		s.logger.Error("refresh via API failed", "error", err)
		writeInternalError(w, err.Error())
	}
}

// lookupSlot resolves {index} to an occupied slot, writing the error
// response itself when it cannot.
func (s *Server) lookupSlot(w http.ResponseWriter, r *http.Request) (int, *device.Handler, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeBadRequest(w, "index must be a non-negative integer")
		return 0, nil, false
	}
	h, ok := s.bridge.Registry().Get(index)
	if !ok {
		writeNotFound(w, "no device at index "+strconv.Itoa(index))
		return 0, nil, false
	}
	return index, h, true
}

func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrNotConnected), errors.Is(err, controller.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, controller.ErrNotAddressable):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, controller.ErrCommandTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeBadGateway, err.Error())
	default:
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	}
}
