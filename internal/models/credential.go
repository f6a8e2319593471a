package models

import "time"

// WriteCredential grants time-limited write access to exactly one object in
// the scan bucket, bound to the declared content type.
type WriteCredential struct {
	URL         string    `json:"url"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
