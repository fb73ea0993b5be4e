package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
	authsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/auth"
	httperrors "github.com/kmish9685/Persona-AI-sub000/internal/transport/http/errors"
)

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

// identityFromRequest never fails: the auth middleware stores an identity for
// every request, and a missing one collapses to the shared anonymous bucket
// inside the gate.
func identityFromRequest(r *http.Request) model.Identity {
	if id, ok := authsvc.IdentityFromContext(r.Context()); ok {
		return id
	}
	return model.Identity{}
}
