package router

import (
	"errors"
	"net/http"
	"strings"

	"chatproxy/internal/faults"
	"chatproxy/internal/models"
	"chatproxy/internal/platform"
)

const contentTypeJSON = "application/json"

// Target is a fully normalized upstream call.
type Target struct {
	Platform string
	Endpoint string
	Model    string
	Stream   bool
	Payload  []byte
	Header   http.Header
}

// Router turns inbound requests into upstream targets.
type Router struct {
	registry *platform.Registry
}

// New constructs a router backed by the provided registry.
func New(registry *platform.Registry) *Router {
	return &Router{
		registry: registry,
	}
}

// Registry returns the platform table the router resolves against.
func (r *Router) Registry() *platform.Registry {
	return r.registry
}

// Normalize resolves the platform, extracts the bearer credential and builds
// the outbound payload. Every failure is a *faults.ClientError.
func (r *Router) Normalize(platformID string, body []byte, authorization string) (Target, error) {
	endpoint, err := r.registry.Resolve(platformID)
	if err != nil {
		if errors.Is(err, platform.ErrNotSupported) {
			return Target{}, faults.PlatformNotSupported(platformID)
		}
		return Target{}, err
	}

	token, err := ParseBearer(authorization)
	if err != nil {
		return Target{}, err
	}

	req, err := models.ParseChatRequest(body)
	if err != nil {
		return Target{}, faults.NewClientError(http.StatusUnprocessableEntity, "%s", err.Error())
	}

	header := make(http.Header, 2)
	header.Set("Authorization", "Bearer "+token)
	header.Set("Content-Type", contentTypeJSON)

	return Target{
		Platform: platformID,
		Endpoint: endpoint,
		Model:    req.Model,
		Stream:   req.Stream,
		Payload:  req.Payload,
		Header:   header,
	}, nil
}

// ParseBearer returns the second whitespace-delimited token of an
// Authorization header value.
func ParseBearer(authorization string) (string, error) {
	if strings.TrimSpace(authorization) == "" {
		return "", faults.NewClientError(http.StatusBadRequest, "authorization header is required")
	}

	fields := strings.Fields(authorization)
	if len(fields) < 2 {
		return "", faults.NewClientError(http.StatusBadRequest, "authorization header must have the form 'Bearer <token>'")
	}
	return fields[1], nil
}
