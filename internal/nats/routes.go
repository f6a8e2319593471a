package nats

import (
	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers"
	"github.com/HairScan-Mara/Scan-Service/internal/configuration"
	"github.com/nats-io/nats.go"
)

// Routes maps event subjects to their durable consumers.
func Routes(cfg *configuration.Config) map[string]nats.MsgHandler {
	return map[string]nats.MsgHandler{
		"scans.stored": handlers.HandleScanStored(cfg),
		"scans.failed": handlers.HandleScanFailed,
	}
}
