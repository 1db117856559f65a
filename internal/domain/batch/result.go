// Package batch describes per-item outcomes of a bulk document insert.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of one document in a bulk insert. A failed item does
// not abort the rest of the batch.
type Result struct {
	docID string
	err   error
}

// Indexed reports a document that was stored and indexed.
func Indexed(docID string) Result { return Result{docID: docID} }

// Rejected reports a document that was skipped because of err.
func Rejected(docID string, err error) Result { return Result{docID: docID, err: err} }

// DocID returns the document identifier, empty when the input carried none
// and was rejected before one was generated.
func (r Result) DocID() string { return r.docID }

// Status derives the outcome from the error.
func (r Result) Status() ItemStatus {
	if r.err != nil {
		return StatusError
	}
	return StatusOK
}

// Err returns the rejection cause, nil for indexed documents.
func (r Result) Err() error { return r.err }

// Tally counts indexed and rejected items.
func Tally(results []Result) (indexed, rejected int) {
	for _, r := range results {
		if r.err != nil {
			rejected++
		} else {
			indexed++
		}
	}
	return indexed, rejected
}
