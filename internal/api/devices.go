package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rfcontrol-core/internal/audit"
	"github.com/nerrad567/rfcontrol-core/internal/control"
	"github.com/nerrad567/rfcontrol-core/internal/device"
)

// User-facing success messages.
const (
	msgDeviceAdded   = "Device added."
	msgProfileAdded  = "Device settings saved."
	msgDeviceDeleted = "Device deleted."
)

// createDeviceRequest is the body of POST /devices. Params is optional;
// when present it must match the profile variant of TypeID.
type createDeviceRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	TypeID      device.TypeID   `json:"type_id"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// deviceResponse is a device with its profile, when it has one.
type deviceResponse struct {
	Device     *device.Device     `json:"device"`
	Variant    device.Variant     `json:"variant,omitempty"`
	Profile    device.Profile     `json:"profile"`
	Attributes []device.Attribute `json:"attributes,omitempty"`
	Message    string             `json:"message,omitempty"`
}

func newDeviceResponse(d *device.Device, p device.Profile) deviceResponse {
	resp := deviceResponse{Device: d}
	if p != nil {
		resp.Variant = p.Variant()
		resp.Profile = p
		resp.Attributes = device.DataAttributes(p)
	}
	return resp
}

// handleListDevices returns the requester's devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevices(r.Context(), requesterID(r.Context()))
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleCreateDevice adds a device owned by the requester, together with
// its profile when params are supplied.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	userID := requesterID(ctx)

	var (
		dev     *device.Device
		profile device.Profile
		err     error
	)
	if hasParams(req.Params) {
		dev, profile, err = s.registry.AddDevice(ctx, device.NewDevice{
			Name:        req.Name,
			Description: req.Description,
			OwnerID:     userID,
			TypeID:      req.TypeID,
			Params:      req.Params,
		})
	} else {
		dev, err = s.registry.Add(ctx, req.Name, req.Description, userID, req.TypeID)
	}
	if err != nil {
		s.writeDeviceError(w, err, "create device")
		return
	}

	s.auditLog(audit.ActionCreate, dev.ID, userID, map[string]any{
		"name":    dev.Name,
		"type_id": int(dev.TypeID),
	})

	resp := newDeviceResponse(dev, profile)
	resp.Message = msgDeviceAdded
	writeJSON(w, http.StatusCreated, resp)
}

func hasParams(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// handleGetDevice returns one of the requester's devices with its profile
// and data attributes. The profile is null if none was added yet.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	dev, err := s.registry.Get(ctx, requesterID(ctx), id)
	if err != nil {
		s.writeDeviceError(w, err, "get device")
		return
	}

	profile, err := s.registry.SpecificDevice(ctx, id)
	switch {
	case errors.Is(err, device.ErrProfileNotFound):
		profile = nil
	case err != nil:
		s.writeDeviceError(w, err, "get device")
		return
	}

	writeJSON(w, http.StatusOK, newDeviceResponse(dev, profile))
}

// handleAddProfile attaches hardware parameters to an existing device.
// The body is the type-specific params object.
func (s *Server) handleAddProfile(w http.ResponseWriter, r *http.Request) {
	var params json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	userID := requesterID(ctx)
	id := chi.URLParam(r, "id")

	profile, err := s.registry.AttachProfile(ctx, userID, id, params)
	if err != nil {
		s.writeDeviceError(w, err, "add profile")
		return
	}

	s.auditLog(audit.ActionCreate, id, userID, map[string]any{
		"variant": string(profile.Variant()),
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"variant":    profile.Variant(),
		"profile":    profile,
		"attributes": device.DataAttributes(profile),
		"message":    msgProfileAdded,
	})
}

// handleDeleteDevice deletes one of the requester's devices and its profile.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requesterID(ctx)
	id := chi.URLParam(r, "id")

	if err := s.registry.Delete(ctx, userID, id); err != nil {
		s.writeDeviceError(w, err, "delete device")
		return
	}

	s.auditLog(audit.ActionDelete, id, userID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": msgDeviceDeleted})
}

// handleControlDevice dispatches an action (e.g. "on", "off") to one of
// the requester's devices.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requesterID(ctx)
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	res, err := s.dispatcher.Dispatch(ctx, control.Request{
		UserID:   userID,
		DeviceID: id,
		Action:   action,
	})
	if err != nil {
		s.writeDeviceError(w, err, "control device")
		return
	}

	s.auditLog(audit.ActionCommand, id, userID, map[string]any{
		"action": action,
		"topic":  res.Topic,
	})
	writeJSON(w, http.StatusOK, res)
}

// handleListDeviceTypes returns the registered device types and the
// profile variant each one uses.
func (s *Server) handleListDeviceTypes(w http.ResponseWriter, _ *http.Request) {
	types := s.registry.Types()

	type deviceType struct {
		ID      device.TypeID  `json:"id"`
		Variant device.Variant `json:"variant"`
	}
	out := make([]deviceType, 0)
	for _, id := range types.IDs() {
		variant, err := types.Resolve(id)
		if err != nil {
			continue
		}
		out = append(out, deviceType{ID: id, Variant: variant})
	}

	writeJSON(w, http.StatusOK, map[string]any{"types": out})
}
