package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/prompt"
	"github.com/raine/sellsmart-bot/internal/session"
)

// Base64 grows data by a third; leave room for the JSON envelope.
const maxRequestBody = listing.MaxImageSize*4/3 + 64*1024

const downloadFileName = "sellsmart-listing"

// gatewayContext keeps request values but drops cancellation: an issued
// gateway call runs to completion even if the client disconnects.
func gatewayContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// sessionResponse is the JSON view of a session. The photo itself is only
// included after an edit or generation; otherwise fetch it from /image.
type sessionResponse struct {
	ID string `json:"id"`
	session.State
	ImagePresent  bool   `json:"hasImage"`
	ImageMIMEType string `json:"imageMimeType,omitempty"`
	ImageURI      string `json:"image,omitempty"`
}

func newSessionResponse(id string, state session.State) sessionResponse {
	resp := sessionResponse{ID: id, State: state, ImagePresent: state.HasImage()}
	if resp.ImagePresent {
		resp.ImageMIMEType = state.Image.MIMEType
	}
	return resp
}

func withImage(resp sessionResponse, image listing.Payload) sessionResponse {
	resp.ImageURI = image.DataURI()
	return resp
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*webSession, bool) {
	ws, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return ws, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", listing.ErrImageTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// readImage accepts either a multipart upload in the "image" field or a JSON
// body {"image": "<data URI or base64>"}. Both are validated as JPEG or PNG.
func readImage(w http.ResponseWriter, r *http.Request) (listing.Payload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		file, _, err := r.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return listing.Payload{}, fmt.Errorf("%w: upload exceeds %d bytes", listing.ErrImageTooLarge, tooLarge.Limit)
			}
			return listing.Payload{}, fmt.Errorf("%w: missing image file: %v", errBadRequest, err)
		}
		defer file.Close()
		return listing.CaptureReader(file)
	}

	var req struct {
		Image string `json:"image"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		return listing.Payload{}, err
	}
	decoded, err := listing.ParseEncoded(req.Image)
	if err != nil {
		return listing.Payload{}, err
	}
	return listing.Capture(decoded.Data)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	ws := s.sessions.Create()
	writeJSON(w, http.StatusCreated, newSessionResponse(ws.id, ws.controller.Snapshot()))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ws.id, ws.controller.Snapshot()))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) submitImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	image, err := readImage(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := ws.controller.SubmitImage(gatewayContext(r), image); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ws.id, ws.controller.Snapshot()))
}

func (s *Server) downloadImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	state := ws.controller.Snapshot()
	if !state.HasImage() {
		writeError(w, session.ErrNoImage)
		return
	}
	img := state.Image
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, downloadFileName, img.Extension()))
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (s *Server) setView(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		View *session.View `json:"view"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.View == nil {
		writeError(w, fmt.Errorf("%w: view is required", errBadRequest))
		return
	}
	if err := ws.controller.SelectView(*req.View); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ws.id, ws.controller.Snapshot()))
}

func (s *Server) editDraft(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var edit session.DraftEdit
	if err := decodeJSON(w, r, &edit); err != nil {
		writeError(w, err)
		return
	}
	if err := ws.controller.EditDraft(edit); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ws.id, ws.controller.Snapshot()))
}

func (s *Server) applyEdit(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Instruction string `json:"instruction"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	image, err := ws.controller.ApplyEdit(gatewayContext(r), req.Instruction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withImage(newSessionResponse(ws.id, ws.controller.Snapshot()), image))
}

// setStyle decodes over the current selection, so fields left out of the
// body keep their value.
func (s *Server) setStyle(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sel := ws.controller.Style()
	if err := decodeJSON(w, r, &sel); err != nil {
		writeError(w, err)
		return
	}
	if err := sel.Validate(); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := ws.controller.SetStyle(sel); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ws.id, ws.controller.Snapshot()))
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	image, err := ws.controller.Generate(gatewayContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withImage(newSessionResponse(ws.id, ws.controller.Snapshot()), image))
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ws.controller.Reset()
	writeJSON(w, http.StatusOK, newSessionResponse(ws.id, ws.controller.Snapshot()))
}

type option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type optionsResponse struct {
	Models      []option             `json:"models"`
	Locations   []option             `json:"locations"`
	Styles      []option             `json:"styles"`
	Resolutions []listing.Resolution `json:"resolutions"`
	QuickEdits  []string             `json:"quickEdits"`
	Views       []session.View       `json:"views"`
	Categories  []listing.Category   `json:"categories"`
	Defaults    prompt.Selection     `json:"defaults"`
}

type choice interface {
	Key() string
	String() string
}

func options[T choice](choices []T) []option {
	out := make([]option, len(choices))
	for i, c := range choices {
		out[i] = option{Key: c.Key(), Label: c.String()}
	}
	return out
}

func getOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{
		Models:      options(prompt.ModelChoices),
		Locations:   options(prompt.LocationChoices),
		Styles:      options(prompt.StyleChoices),
		Resolutions: listing.Resolutions,
		QuickEdits:  prompt.QuickEdits,
		Views:       session.Views,
		Categories:  listing.Categories,
		Defaults:    prompt.DefaultSelection(),
	})
}
