package entities

import (
	"time"
)

// IndexerState tracks the indexing checkpoint for one DAO
type IndexerState struct {
	DaoID            DaoID     `db:"dao_id"`
	LastIndexedBlock int64     `db:"last_indexed_block"`
	LastLogIndex     int       `db:"last_log_index"`
	EventsProcessed  int64     `db:"events_processed"`
	EventsSkipped    int64     `db:"events_skipped"`
	UpdatedAt        time.Time `db:"updated_at"`
}
