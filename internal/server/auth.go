package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"sprintline/internal/auth"
	"sprintline/internal/engine"
)

func unauthorized() huma.StatusError {
	return newAPIError(http.StatusUnauthorized, "invalid_authentication", "Token invalide ou utilisateur non identifié", nil)
}

// AuthHeader is embedded in every mutating input. The raw token is handed to
// the engine, which decides who the caller is.
type AuthHeader struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the caller"`
}

// token returns the bearer credential. A missing header yields "" so the
// engine reports the authentication failure with its own message.
func (a AuthHeader) token() (string, huma.StatusError) {
	authz := strings.TrimSpace(a.Authorization)
	if authz == "" {
		return "", nil
	}
	tok, ok := auth.BearerToken(authz)
	if !ok {
		return "", unauthorized()
	}
	return tok, nil
}

// requireCaller authenticates a request for operations the engine runs on
// behalf of the system rather than a caller.
func requireCaller(ctx context.Context, e engine.Engine, a AuthHeader) huma.StatusError {
	tok, herr := a.token()
	if herr != nil {
		return herr
	}
	if e.Auth == nil || tok == "" {
		return unauthorized()
	}
	if _, err := e.Auth.Decode(ctx, tok); err != nil {
		return unauthorized()
	}
	return nil
}
