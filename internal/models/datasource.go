package models

// Well-known data source ids
const (
	InputSourceID   = "data-input"
	QueueSourceID   = "presentation-queue"
	HistorySourceID = "presented-history"
)

// DataSource represents a named, ordered collection of rows
type DataSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Data []Row  `json:"data"`
}
