package health

import "context"

// DBPinger checks content store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexSizer reports the vector index population.
type IndexSizer interface {
	Len() int
}
