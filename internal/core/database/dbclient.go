package db

import "github.com/markdave123-py/CodeInsight/internal/core"

// DatabaseClient serves both as the metadata store and, with the pgvector
// backend, as the vector index.
var (
	_ core.DbClient    = (*DatabaseClient)(nil)
	_ core.VectorIndex = (*DatabaseClient)(nil)
)
