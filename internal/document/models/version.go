package models

import (
	"time"

	id "lexflow/pkg/domain"
)

type VersionType string

const (
	VersionOriginal VersionType = "original"
	VersionSigned   VersionType = "signed"
)

// Version is an immutable rendered snapshot. The content itself lives in
// the blob store under BlobKey.
type Version struct {
	ID          id.VersionID  `json:"id"`
	DocumentID  id.DocumentID `json:"document"`
	Type        VersionType   `json:"version_type"`
	Number      int           `json:"version_number"`
	SignerID    *id.UserID    `json:"signer,omitempty"`
	BlobKey     string        `json:"-"`
	Digest      string        `json:"digest"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NextSignedNumber returns previousMax+1 over the signed versions.
func NextSignedNumber(versions []*Version) int {
	maxNumber := 0
	for _, v := range versions {
		if v.Type == VersionSigned && v.Number > maxNumber {
			maxNumber = v.Number
		}
	}
	return maxNumber + 1
}

// HasOriginal reports whether the original snapshot was captured.
func HasOriginal(versions []*Version) bool {
	for _, v := range versions {
		if v.Type == VersionOriginal {
			return true
		}
	}
	return false
}
