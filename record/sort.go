package record

// SortKey selects the timestamp a message listing is ordered by. Listings
// are always most-recent-first; ties order by record ID ascending.
type SortKey int

const (
	ByCreationTime SortKey = iota
	ByEditTime
)

func (k SortKey) String() string {
	switch k {
	case ByCreationTime:
		return "creation_time"
	case ByEditTime:
		return "edit_time"
	}
	return "unknown"
}
