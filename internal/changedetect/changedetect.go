// Package changedetect implements the Change Detector: picking the
// strongest available signal that an upstream source has changed since a
// prior snapshot, so the Incremental Updater can skip unaffected regions
// (§4.I).
package changedetect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Method names the signal that produced a detection result, in the
// priority order the detector tries them.
type Method string

const (
	MethodETag          Method = "etag"
	MethodLastModified  Method = "last_modified"
	MethodTotalCount    Method = "total_count"
	MethodContentHash   Method = "content_hash"
	MethodFailOpen      Method = "fail_open"
)

// Result is the detector's verdict for one scope.
type Result struct {
	HasChanges       bool
	Method           Method
	Confidence       float64
	UnchangedRegions []string
}

// PriorState is what a snapshot recorded the last time this scope was
// extracted, used as the comparison baseline for every detection method.
type PriorState struct {
	ETag         string
	LastModified time.Time
	TotalCount   int
	ContentHash  string
	VintageYear  int
}

// Source exposes whichever change signals a provider supports; every
// method returns ok=false when the provider does not expose that signal,
// letting the detector fall through to the next priority tier.
type Source interface {
	ETag(ctx context.Context) (string, bool, error)
	LastModified(ctx context.Context) (time.Time, bool, error)
	TotalCount(ctx context.Context) (int, bool, error)
	MetadataBody(ctx context.Context) ([]byte, bool, error)
}

// Detect tries each signal in priority order: ETag (strongest),
// Last-Modified, provider-reported total_count, then a content hash over a
// cheap metadata endpoint. If none are available, it fails open (§4.I).
func Detect(ctx context.Context, src Source, prior PriorState) Result {
	if etag, ok, err := src.ETag(ctx); err == nil && ok {
		changed := etag != prior.ETag
		return Result{HasChanges: changed, Method: MethodETag, Confidence: 1.0}
	}

	if lm, ok, err := src.LastModified(ctx); err == nil && ok {
		releaseCalendar := releaseDateForVintage(prior.VintageYear)
		changed := lm.After(releaseCalendar) && lm.After(prior.LastModified)
		return Result{HasChanges: changed, Method: MethodLastModified, Confidence: 0.85}
	}

	if count, ok, err := src.TotalCount(ctx); err == nil && ok {
		changed := count != prior.TotalCount
		return Result{HasChanges: changed, Method: MethodTotalCount, Confidence: 0.7}
	}

	if body, ok, err := src.MetadataBody(ctx); err == nil && ok {
		sum := sha256.Sum256(body)
		hash := hex.EncodeToString(sum[:])
		changed := hash != prior.ContentHash
		return Result{HasChanges: changed, Method: MethodContentHash, Confidence: 0.5}
	}

	return Result{HasChanges: true, Method: MethodFailOpen, Confidence: 0}
}

// releaseDateForVintage approximates the TIGER/Census annual release
// calendar: new vintage-year boundary files are typically published in Q3
// of the following calendar year.
func releaseDateForVintage(vintageYear int) time.Time {
	return time.Date(vintageYear+1, time.September, 1, 0, 0, 0, 0, time.UTC)
}
