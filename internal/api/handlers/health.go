package handlers

import (
	"log/slog"
	"net/http"
)

// HealthInfo is what the health endpoint reports besides "ok".
type HealthInfo struct {
	Version string
	Asset   string
	ChainID string
	// RPCState returns the chain client's circuit breaker state. May be nil.
	RPCState func() string
}

// HealthHandler returns a handler for the GET /api/health endpoint.
func HealthHandler(info HealthInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		body := map[string]string{
			"status":  "ok",
			"version": info.Version,
			"asset":   info.Asset,
			"chainId": info.ChainID,
		}
		if info.RPCState != nil {
			body["rpc"] = info.RPCState()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
