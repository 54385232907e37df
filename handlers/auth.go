package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/safejob-nl/auth/repos"
	"github.com/safejob-nl/auth/services"
)

func (h *Handler) requestMagicLink(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}
	body, err := decodeBody[request](r)
	if err != nil {
		badRequest(w)
		return
	}
	if fields := findInvalidFields(body); fields != nil {
		invalidFields(w, fields)
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	err = h.MagicLinkService.RequestLink(r.Context(), email, repos.MagicTokenLogin, requestContext(r))
	if err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			respondError(w, ErrRateLimited, http.StatusTooManyRequests, nil)
		} else if errors.Is(err, services.ErrUnavailable) {
			serviceUnavailable(w)
		} else {
			serverError(w, err)
		}
		return
	}

	type response struct {
		Message string `json:"message"`
	}
	// always generic: requesting a link must not reveal whether the address is registered
	respond(w, http.StatusOK, response{
		Message: "If the address is known to us, a sign-in link is on its way.",
	})
}

func (h *Handler) verifyMagicLink(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Token string `json:"token" validate:"required"`
	}
	body, err := decodeBody[request](r)
	if err != nil {
		badRequest(w)
		return
	}
	if fields := findInvalidFields(body); fields != nil {
		invalidFields(w, fields)
		return
	}

	identity, err := h.MagicLinkService.VerifyLink(r.Context(), body.Token, repos.MagicTokenLogin, requestContext(r))
	if err != nil {
		if errors.Is(err, services.ErrLinkInvalidOrExpired) {
			respondError(w, ErrLinkInvalidOrExpired, http.StatusBadRequest, nil)
		} else if errors.Is(err, services.ErrUnavailable) {
			serviceUnavailable(w)
		} else {
			serverError(w, err)
		}
		return
	}

	claims, err := h.Directory.Resolve(r.Context(), identity)
	if err != nil {
		serverError(w, err)
		return
	}

	pair, err := h.SessionService.IssuePair(r.Context(), identity, claims)
	if err != nil {
		if errors.Is(err, services.ErrUnavailable) {
			serviceUnavailable(w)
		} else {
			serverError(w, err)
		}
		return
	}
	respond(w, http.StatusOK, pair)
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Refresh string `json:"refresh" validate:"required"`
	}
	body, err := decodeBody[request](r)
	if err != nil {
		badRequest(w)
		return
	}
	if fields := findInvalidFields(body); fields != nil {
		invalidFields(w, fields)
		return
	}

	pair, err := h.SessionService.Refresh(r.Context(), body.Refresh, requestContext(r))
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) || errors.Is(err, services.ErrTokenInvalid) {
			respondError(w, ErrUnauthenticated, http.StatusUnauthorized, nil)
		} else if errors.Is(err, services.ErrUnavailable) {
			serviceUnavailable(w)
		} else {
			serverError(w, err)
		}
		return
	}
	respond(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Refresh string `json:"refresh"`
	}

	var err error
	if bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "); bearer != "" && bearer != r.Header.Get("Authorization") {
		err = h.SessionService.RevokeAccessToken(r.Context(), bearer, "logout", requestContext(r))
	} else {
		var body request
		body, err = decodeBody[request](r)
		if err != nil || body.Refresh == "" {
			badRequest(w)
			return
		}
		err = h.SessionService.RevokeRefreshToken(r.Context(), body.Refresh, "logout", requestContext(r))
	}
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) || errors.Is(err, services.ErrTokenInvalid) {
			respondError(w, ErrUnauthenticated, http.StatusUnauthorized, nil)
		} else if errors.Is(err, services.ErrUnavailable) {
			serviceUnavailable(w)
		} else {
			serverError(w, err)
		}
		return
	}
	respond(w, http.StatusOK, nil)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, claims := authenticatedIdentity(r.Context())
	type response struct {
		Identity     string                   `json:"identity"`
		Kind         repos.IdentityKind       `json:"kind"`
		Verification repos.VerificationStatus `json:"verification,omitempty"`
	}
	respond(w, http.StatusOK, response{
		Identity:     identity,
		Kind:         claims.Kind,
		Verification: claims.Verification,
	})
}
