package explorer

import "encoding/json"

// Backend endpoints.
const (
	PathStakingInfo     = "/api/getstakinginfo"
	PathMiningInfo      = "/api/getmininginfo"
	PathTicketPoolValue = "/api/getticketpoolvalue"
	PathFaucet          = "/api/requestfaucetvgl"
)

// StakingInfo is the presentation shape of /api/getstakinginfo. It is a
// snapshot and never cached.
type StakingInfo struct {
	TotalStaked   float64 `json:"totalStaked"`
	SecurityScore float64 `json:"securityScore"`
	ProjectedROI  float64 `json:"projectedROI"`
}

// backendStakingInfo is the shape returned by the backend.
type backendStakingInfo struct {
	TotalStaked   *float64 `json:"TotalStaked"`
	SecurityScore *float64 `json:"SecurityScore"`
	ProjectedROI  *float64 `json:"ProjectedROI"`
}

// FaucetRequest is the body POSTed to the faucet.
type FaucetRequest struct {
	Address string `json:"address"`
}

// FaucetResult is the faucet outcome. Failures of any kind are reported as
// Success=false with a non-empty Message.
type FaucetResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
