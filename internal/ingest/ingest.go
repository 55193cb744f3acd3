// Package ingest imports historical training logs into the database so that
// weight suggestions and personal records start from real history instead of
// an empty slate.
package ingest

// Result holds the outcome of an import operation.
type Result struct {
	SessionsReceived int   `json:"sessions_received"`
	SessionsInserted int   `json:"sessions_inserted"`
	SetsReceived     int   `json:"sets_received"`
	SetsInserted     int64 `json:"sets_inserted"`
	WarmupsSkipped   int   `json:"warmups_skipped"`

	Message string `json:"message,omitempty"`
}
