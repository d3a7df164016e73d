package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSiteNotFound    = errors.New("site not found")
	ErrProductNotFound = errors.New("product not found")
	ErrAlertNotFound   = errors.New("alert not found")

	ErrNoProducts      = errors.New("the store returned no products")
	ErrSyncInProgress  = errors.New("a sync is already running for this site")
	ErrNoRemoteID      = errors.New("product has no remote id")
	ErrUnknownAPIKey   = errors.New("unknown api key")
	ErrAmbiguousAPIKey = errors.New("api key is shared by several sites")
	ErrInvalidRecord   = errors.New("invalid product record")
)

// InvalidPayloadError lists every record of a pushed batch that failed
// validation. Nothing of the batch has been applied.
type InvalidPayloadError struct {
	Failures []RecordResult
}

func (e *InvalidPayloadError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("#%d: %s", f.Index, f.Reason))
	}
	return fmt.Sprintf("%d invalid record(s): %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *InvalidPayloadError) Unwrap() error { return ErrInvalidRecord }
