package middleware

import (
	"net/http"

	"github.com/mnehpets/onerpc/endpoint"
)

// BodyLimitProcessor caps the size of request bodies. Reading past Limit
// fails, and the endpoint answers 413 Request Entity Too Large.
type BodyLimitProcessor struct {
	Limit int64
}

// Process implements endpoint.Processor.
func (p BodyLimitProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	if p.Limit > 0 && r.Body != nil && r.Body != http.NoBody {
		if r.ContentLength > p.Limit {
			return endpoint.Error(http.StatusRequestEntityTooLarge, "", nil)
		}
		r.Body = http.MaxBytesReader(w, r.Body, p.Limit)
	}
	return next(w, r)
}

var _ endpoint.Processor = BodyLimitProcessor{}
