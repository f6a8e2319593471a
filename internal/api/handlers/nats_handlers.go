package handlers

import (
	"encoding/json"
	"log"

	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers/util"
	"github.com/HairScan-Mara/Scan-Service/internal/configuration"
	"github.com/nats-io/nats.go"
)

type ScanStoredEvent struct {
	UploadID   string `json:"upload_id"`
	ContactID  string `json:"contact_id"`
	ObjectName string `json:"object_name"`
	FileType   string `json:"file_type"`
}

type ScanFailedEvent struct {
	UploadID string `json:"upload_id"`
	Reason   string `json:"reason"`
}

// HandleScanStored kicks off post-ingest work on the stored object: malware
// scan and thumbnail. Records without a stored object have nothing to do.
func HandleScanStored(cfg *configuration.Config) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var payload ScanStoredEvent
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("[NATS] scans.stored: invalid payload: %v", err)
			_ = msg.Nak()
			return
		}

		log.Printf("[NATS] scan stored: %s (object=%q)", payload.UploadID, payload.ObjectName)

		if payload.ObjectName != "" {
			go util.ProcessStoredObject(payload.UploadID, payload.ObjectName, cfg.CLAMAVURL)
		}

		_ = msg.Ack()
	}
}

// HandleScanFailed only records the failure in the log; the record itself
// already carries the reason.
func HandleScanFailed(msg *nats.Msg) {
	var payload ScanFailedEvent
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Printf("[NATS] scans.failed: invalid payload: %v", err)
		_ = msg.Nak()
		return
	}
	log.Printf("[NATS] scan failed: %s: %s", payload.UploadID, payload.Reason)
	_ = msg.Ack()
}
