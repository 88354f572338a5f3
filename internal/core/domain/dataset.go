package domain

type Collection string

const (
	CollectionProducts  Collection = "products"
	CollectionStores    Collection = "stores"
	CollectionInventory Collection = "inventory"
)

// Dataset is the full initial import, one slice per collection.
type Dataset struct {
	Products  []Product
	Stores    []Store
	Inventory []InventoryRecord
}

type LoadReport struct {
	Collection    Collection `json:"collection"`
	Read          int        `json:"read"`
	Inserted      int        `json:"inserted"`
	FailedBatches int        `json:"failed_batches"`
}
