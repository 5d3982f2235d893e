package social

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	httperrors "github.com/weauth/weauth/internal/http/errors"
	svc "github.com/weauth/weauth/internal/http/services/social"
	"github.com/weauth/weauth/internal/oauth/wechat"
	"github.com/weauth/weauth/internal/observability/logger"
	"github.com/weauth/weauth/internal/security/wxcrypt"
)

// CallbackController handles the social login callback endpoint.
type CallbackController struct {
	service     svc.CallbackService
	stateSigner svc.StateSigner // To extract redirect_uri for error redirects
}

// NewCallbackController creates a new CallbackController.
func NewCallbackController(service svc.CallbackService, stateSigner svc.StateSigner) *CallbackController {
	return &CallbackController{service: service, stateSigner: stateSigner}
}

// callbackResponse is the success payload: the terminal attempt plus the
// normalized result (absent for the fixed test code).
type callbackResponse struct {
	Attempt *svc.AuthAttempt `json:"attempt"`
	Result  *svc.AuthResult  `json:"result,omitempty"`
}

// Callback handles GET /v1/auth/wechat/callback
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := svc.CallbackRequest{
		Code:             strings.TrimSpace(q.Get("code")),
		State:            strings.TrimSpace(q.Get("state")),
		ErrorCode:        strings.TrimSpace(q.Get("error")),
		ErrorDescription: strings.TrimSpace(q.Get("error_description")),
		Signature:        strings.TrimSpace(q.Get("signature")),
		RawData:          q.Get("raw_data"),
		IV:               strings.TrimSpace(q.Get("iv")),
		EncryptedData:    strings.TrimSpace(q.Get("encrypted_data")),
	}

	if req.State == "" {
		log.Warn("missing state")
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("state required"))
		return
	}

	result, err := c.service.Callback(ctx, req)
	if err != nil {
		log.Warn("callback failed", logger.Err(err))

		// Best UX: send the browser back to the client app with error
		// parameters when the state vouches for a redirect target.
		if redirectURI := c.extractRedirectURI(req.State); redirectURI != "" {
			errorCode, errorDesc := mapCallbackError(err)
			redirectWithError(w, r, redirectURI, errorCode, errorDesc)
			return
		}

		httperrors.WriteError(w, appErrorFor(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(callbackResponse{Attempt: result.Attempt, Result: result.Result})

	log.Debug("callback completed", logger.AttemptID(result.Attempt.ID))
}

// appErrorFor maps a service error onto the JSON error catalog.
func appErrorFor(err error) *httperrors.AppError {
	var perr *wechat.ProviderError
	if errors.As(err, &perr) {
		return httperrors.ErrProviderRejected.WithDetail(perr.Error())
	}
	var terr *wechat.TransportError
	if errors.As(err, &terr) {
		return httperrors.ErrProviderUnavailable.WithCause(err)
	}
	var derr *wechat.DataInvalidError
	if errors.As(err, &derr) {
		return httperrors.ErrProviderDataInvalid.WithDetail(derr.Reason)
	}
	var cerr *wxcrypt.DataCorruptedError
	if errors.As(err, &cerr) {
		return httperrors.ErrProviderDataInvalid.WithDetail(cerr.Error())
	}
	switch {
	case errors.Is(err, wechat.ErrMissingCode):
		return httperrors.ErrBadRequest.WithDetail("code required")
	case errors.Is(err, wxcrypt.ErrSignatureMismatch):
		return httperrors.ErrSignatureInvalid
	case errors.Is(err, svc.ErrStateInvalid), errors.Is(err, svc.ErrStateExpired):
		return httperrors.ErrBadRequest.WithDetail("invalid state")
	default:
		return httperrors.ErrInternalServerError.WithCause(err)
	}
}

// mapCallbackError maps a service error to OAuth2-style error code and
// description for the redirect-with-error path.
func mapCallbackError(err error) (code, description string) {
	var perr *wechat.ProviderError
	if errors.As(err, &perr) {
		desc := perr.Description
		if desc == "" {
			desc = "The identity provider rejected the authentication."
		}
		return perr.Code, desc
	}
	var terr *wechat.TransportError
	if errors.As(err, &terr) {
		return "temporarily_unavailable", "Could not reach the identity provider. Please try again."
	}
	switch {
	case errors.Is(err, wechat.ErrMissingCode):
		return "invalid_request", "No authorization code was received."
	case errors.Is(err, wxcrypt.ErrSignatureMismatch):
		return "invalid_request", "Signed payload verification failed."
	case errors.Is(err, svc.ErrStateInvalid), errors.Is(err, svc.ErrStateExpired):
		return "invalid_request", "Invalid or expired login session. Please try again."
	default:
		return "server_error", "An unexpected error occurred. Please try again."
	}
}

// extractRedirectURI tries to parse the state JWT to extract the
// redirect_uri. Returns empty string if state is empty or parsing fails.
func (c *CallbackController) extractRedirectURI(state string) string {
	if state == "" || c.stateSigner == nil {
		return ""
	}
	claims, err := c.stateSigner.ParseState(state)
	if err != nil || claims == nil {
		return ""
	}
	return claims.RedirectURI
}

// redirectWithError redirects the user to the client app with error
// parameters.
func redirectWithError(w http.ResponseWriter, r *http.Request, redirectURI, errorCode, errorDesc string) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	q := u.Query()
	q.Set("error", errorCode)
	if errorDesc != "" {
		q.Set("error_description", errorDesc)
	}
	u.RawQuery = q.Encode()

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	http.Redirect(w, r, u.String(), http.StatusFound)
}
