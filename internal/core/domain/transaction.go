package domain

type OpKind string

const (
	OpSale    OpKind = "sale"
	OpReceipt OpKind = "receipt"
)

// StockOp is a single mutation submitted to the inventory store as part of a
// bulk write. Sales are conditional on sufficient stock, receipts upsert.
type StockOp struct {
	Kind      OpKind
	StoreID   string
	ProductID string
	Quantity  int
}

// OpResult reports whether an op matched a record. A sale that found no
// record with enough stock has Matched == false.
type OpResult struct {
	Matched bool
	Err     error
}

type RowStatus string

const (
	RowSuccess        RowStatus = "success"
	RowFailed         RowStatus = "failed"
	RowPartialFailure RowStatus = "partial_success/failure"
)

// BatchRow is one raw line of a batch upload. Quantity is kept as text so
// that malformed values are reported per row instead of rejecting the file.
type BatchRow struct {
	Row       int
	StoreID   string
	ProductID string
	Quantity  string
}

type RowOutcome struct {
	Row       int       `json:"row"`
	Status    RowStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	StoreID   string    `json:"store_id"`
	ProductID string    `json:"product_id"`
}
