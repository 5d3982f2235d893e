// Package social exposes the HTTP edge of the social login flow: the
// start endpoint that redirects the browser to the identity provider and
// the callback endpoint that finishes the cycle.
package social

import (
	"net/http"
	"strings"

	httperrors "github.com/weauth/weauth/internal/http/errors"
	svc "github.com/weauth/weauth/internal/http/services/social"
	"github.com/weauth/weauth/internal/observability/logger"
)

// StartController handles the social login start endpoint.
type StartController struct {
	service svc.StartService
}

// NewStartController creates a new StartController.
func NewStartController(service svc.StartService) *StartController {
	return &StartController{service: service}
}

// Start handles GET /v1/auth/wechat/start
func (c *StartController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("StartController.Start"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := svc.StartRequest{
		Echo:        strings.TrimSpace(q.Get("echo")),
		RedirectURI: strings.TrimSpace(q.Get("redirect_uri")),
	}
	if raw := strings.TrimSpace(q.Get("scope")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				req.Scopes = append(req.Scopes, s)
			}
		}
	}

	result, err := c.service.Start(ctx, req)
	if err != nil {
		log.Error("start failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("X-Auth-Attempt", result.AttemptID)
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)

	log.Debug("redirecting to provider", logger.AttemptID(result.AttemptID))
}
