// internal/app/store/storeutil/storeutil.go
package storeutil

import (
	"math"

	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultPageSize is used when a caller passes a non-positive limit.
const DefaultPageSize = 20

// Paginate returns *options.FindOptions with skip/limit for a 0-based page.
// Negative pages are treated as the first page; pages whose offset would
// overflow skip to the last representable page, which is empty.
func Paginate(limit, page int64) *options.FindOptions {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	if page > math.MaxInt64/limit {
		page = math.MaxInt64 / limit
	}
	return options.Find().SetLimit(limit).SetSkip(page * limit)
}
