package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"warm-transfer-service/internal/registry"
)

// errorBody is the structured client-visible failure: kind + human message.
type errorBody struct {
	Kind    registry.ErrorKind `json:"kind"`
	Message string             `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

// writeRegistryError maps the registry error taxonomy onto HTTP statuses.
// Non-registry errors are reported as a 500 without leaking internals.
func (h *Handler) writeRegistryError(w http.ResponseWriter, err error) {
	var re *registry.Error
	if !errors.As(err, &re) {
		h.Logger.Error().Err(err).Msg("Unclassified registry failure")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": errorBody{Kind: "internal", Message: "internal error"},
		})
		return
	}

	status := http.StatusInternalServerError
	switch re.Kind {
	case registry.KindNotFound:
		status = http.StatusNotFound
	case registry.KindInvalidState, registry.KindConflict:
		status = http.StatusConflict
	case registry.KindCredentialMint:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]any{
		"error": errorBody{Kind: re.Kind, Message: re.Message},
	})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty body, fields keep their defaults
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func errMissingField(name string) error {
	return fmt.Errorf("%s is required", name)
}
