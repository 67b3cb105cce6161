// Package model defines the wire shapes exchanged with dashboard callers.
package model

// GenericErrorMessage is the only failure detail ever returned to callers.
const GenericErrorMessage = "Failed to fetch data from API"

// ProxyRequest is the inbound body of POST /api/proxy. Fields other than
// url are ignored, so callers cannot smuggle headers or credentials upstream.
type ProxyRequest struct {
	URL string `json:"url"`
}

// ErrorResponse is the fixed-shape failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GenericError returns the failure body sent for every forwarding error.
func GenericError() ErrorResponse {
	return ErrorResponse{Error: GenericErrorMessage}
}
