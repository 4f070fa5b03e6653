package index

// RecordIndex defines the interface for record indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RecordIndex interface {
	ReplaceStore(s StoreRow, records []RecordRow) error
	UpsertRecord(s StoreRow, r RecordRow) error
	DeleteStore(id string) error
	GetStore(id string) (*StoreRow, error)
	StoreChecksum(id string) (string, error)
	AllStoreChecksums() (map[string]string, error)
	ListRecords(storeID, author string, limit, offset int) ([]RecordRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies RecordIndex at compile time.
var _ RecordIndex = (*DB)(nil)
