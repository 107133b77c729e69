package client

// StatusEvent is one status message received from the launcher.
type StatusEvent struct {
	Channel string `json:"channel"`
	Role    string `json:"role,omitempty"`
	Message string `json:"message"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Channels map[string]string `json:"channels"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
