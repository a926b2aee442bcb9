package core

import (
	"context"
)

// DocumentExtractor turns a file on disk into plain text.
// Extract never fails: unreadable or unsupported files yield "".
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) string
}
