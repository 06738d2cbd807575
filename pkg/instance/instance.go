package instance

import (
	"os"

	"github.com/angelmondragon/packfinderz-wallet/pkg/env"
)

const defaultID = "wallet-0"

// GetID names the running replica for logs and lock ownership. WORKER_ID wins,
// then the pod hostname.
func GetID() string {
	if id := env.First("WORKER_ID", "HOSTNAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
