package domain

import "time"

// ItemStats counts items of one type by sync status.
type ItemStats struct {
	BySyncStatus map[SyncStatus]int `json:"by_sync_status"`
	Tombstoned   int                `json:"tombstoned"`
	Total        int                `json:"total"`
}

// Stats is the operational snapshot exposed to admin tooling.
type Stats struct {
	Records  ItemStats                     `json:"records"`
	Content  ItemStats                     `json:"content"`
	URLs     map[URLKind]map[URLStatus]int `json:"urls"`
	LastJobs map[JobType]*IngestionJob     `json:"last_jobs"`
	LastSync map[SyncScope]*time.Time      `json:"last_sync"`
}
