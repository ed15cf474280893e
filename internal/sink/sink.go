// Package sink holds the upload transports. The HTTP sink posts to a
// file-bed service whose response shape is not fixed; the S3 sink writes to
// a bucket and constructs the public URL itself.
package sink

import (
	"context"
)

type UploadRequest struct {
	FileName string
	MIMEType string
	Data     []byte
}

// Result carries the normalized link (nil when none could be extracted) and
// the raw response text for diagnostics, captured before any parse attempt.
type Result struct {
	Link    *ExtractedLink
	RawBody string
}

type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*Result, error)
}
