package domain

import "time"

// Collection names an independently loaded product collection.
type Collection string

const (
	CollectionCatalog         Collection = "catalog"
	CollectionRecommendations Collection = "recommendations"
)

// Collections lists every loadable collection.
var Collections = []Collection{CollectionCatalog, CollectionRecommendations}

// ParseCollection converts a raw name into a Collection.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(s); c {
	case CollectionCatalog, CollectionRecommendations:
		return c, nil
	}
	return "", ErrInvalidCollection
}

// LoadStatus is the lifecycle stage of a collection fetch.
type LoadStatus string

const (
	LoadIdle      LoadStatus = "idle"
	LoadPending   LoadStatus = "pending"
	LoadFulfilled LoadStatus = "fulfilled"
	LoadRejected  LoadStatus = "rejected"
)

// LoadState is the observable load state of one collection.
type LoadState struct {
	Status    LoadStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"` // only when Status is LoadRejected
	TicketID  string     `json:"ticket_id,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Pending reports whether a fetch is in flight.
func (s LoadState) Pending() bool {
	return s.Status == LoadPending
}
