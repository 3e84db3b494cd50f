package syncer

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/index"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// candidate is one item as a sync pass sees it, independent of its type.
type candidate struct {
	ref    string
	hash   string
	status domain.SyncStatus
	render func() (index.Document, error)
}

// pass syncs one item type. Index calls use ctx; persistence writes use
// store so an interrupted pass still records what it did.
type pass struct {
	s        *Service
	ctx      context.Context
	store    context.Context
	itemType domain.ItemType
	log      logger.Logger
	summary  domain.SyncSummary
}

func (p *pass) run() error {
	pending, tombstoned, err := p.load()
	if err != nil {
		return err
	}

	p.log.Debug("Sync candidates",
		logger.ItemType(string(p.itemType)),
		logger.Int("pending", len(pending)),
		logger.Int("tombstoned", len(tombstoned)),
	)

	for _, c := range pending {
		if err := p.ctx.Err(); err != nil {
			return fmt.Errorf("sync interrupted: %w", err)
		}
		if err := p.upsert(c); err != nil {
			return err
		}
	}

	for _, c := range tombstoned {
		if err := p.ctx.Err(); err != nil {
			return fmt.Errorf("sync interrupted: %w", err)
		}
		if err := p.remove(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) load() (pending, tombstoned []candidate, err error) {
	switch p.itemType {
	case domain.ItemTypeRecord:
		recs, listErr := p.s.records.ListPendingSync(p.store)
		if listErr != nil {
			return nil, nil, fmt.Errorf("failed to list pending records: %w", listErr)
		}
		gone, listErr := p.s.records.ListTombstoned(p.store)
		if listErr != nil {
			return nil, nil, fmt.Errorf("failed to list tombstoned records: %w", listErr)
		}
		for _, r := range recs {
			pending = append(pending, p.s.recordCandidate(r))
		}
		for _, r := range gone {
			tombstoned = append(tombstoned, p.s.recordCandidate(r))
		}
	case domain.ItemTypeContent:
		items, listErr := p.s.content.ListPendingSync(p.store)
		if listErr != nil {
			return nil, nil, fmt.Errorf("failed to list pending content: %w", listErr)
		}
		gone, listErr := p.s.content.ListTombstoned(p.store)
		if listErr != nil {
			return nil, nil, fmt.Errorf("failed to list tombstoned content: %w", listErr)
		}
		for _, c := range items {
			pending = append(pending, p.s.contentCandidate(c))
		}
		for _, c := range gone {
			tombstoned = append(tombstoned, p.s.contentCandidate(c))
		}
	default:
		return nil, nil, fmt.Errorf("unknown item type %q", p.itemType)
	}
	return pending, tombstoned, nil
}

func (s *Service) recordCandidate(r *domain.Record) candidate {
	return candidate{
		ref:    r.ExternalReference,
		hash:   r.ContentHash,
		status: r.SyncStatus,
		render: func() (index.Document, error) { return s.renderer.RenderRecord(r) },
	}
}

func (s *Service) contentCandidate(c *domain.ContentItem) candidate {
	return candidate{
		ref:    c.SourceURL,
		hash:   c.ContentHash,
		status: c.SyncStatus,
		render: func() (index.Document, error) { return s.renderer.RenderContent(c), nil },
	}
}

// upsert sends one pending item to the index unless its hash already
// matches the last successful upload. Only quota and lost-connection errors
// are returned; anything else fails the item and the pass continues.
func (p *pass) upsert(c candidate) error {
	log := p.log.With(logger.ItemType(string(p.itemType)), logger.ItemRef(c.ref))

	latest, err := p.s.log.LatestSuccess(p.store, p.itemType, c.ref)
	if err != nil {
		return p.persistenceFailure(log, err)
	}

	if uploaded(latest) && latest.ContentHashAtSync == c.hash {
		p.setStatus(log, c, domain.SyncStatusSynced)
		p.summary.Skipped++
		p.s.metrics.SyncCall(string(p.itemType), string(domain.SyncActionUpsert), "skipped")
		log.Debug("Item unchanged since last sync")
		return nil
	}

	doc, err := c.render()
	if err != nil {
		return p.upsertFailed(log, c, latest, err)
	}

	if uploaded(latest) && *latest.ExternalIndexID != doc.ID {
		if delErr := p.s.index.Delete(p.ctx, *latest.ExternalIndexID); delErr != nil {
			return p.upsertFailed(log, c, latest, delErr)
		}
	}

	ref, err := p.s.index.Upsert(p.ctx, doc)
	if err != nil {
		return p.upsertFailed(log, c, latest, err)
	}

	if err := p.appendLog(c.ref, domain.SyncActionUpsert, c.hash, domain.SyncResultSuccess, &ref, nil); err != nil {
		return p.persistenceFailure(log, err)
	}
	p.setStatus(log, c, domain.SyncStatusSynced)

	p.summary.Uploaded++
	p.s.metrics.SyncCall(string(p.itemType), string(domain.SyncActionUpsert), string(domain.SyncResultSuccess))
	log.Debug("Item uploaded", logger.String("index_ref", ref))
	return nil
}

func (p *pass) upsertFailed(log logger.Logger, c candidate, latest *domain.SyncLogEntry, cause error) error {
	p.summary.Failed++
	p.s.metrics.SyncCall(string(p.itemType), string(domain.SyncActionUpsert), string(domain.SyncResultFailure))
	log.Warn("Failed to upload item", logger.Error(cause))

	msg := cause.Error()
	if err := p.appendLog(c.ref, domain.SyncActionUpsert, c.hash, domain.SyncResultFailure, nil, &msg); err != nil {
		return p.persistenceFailure(log, err)
	}

	status := domain.SyncStatusStale
	if !uploaded(latest) {
		status = domain.SyncStatusFailed
	}
	p.setStatus(log, c, status)

	if domain.IsQuotaExceeded(cause) {
		return cause
	}
	return nil
}

// remove deletes a tombstoned item from the index, then physically removes
// its row. Items that were never uploaded need no index call.
func (p *pass) remove(c candidate) error {
	log := p.log.With(logger.ItemType(string(p.itemType)), logger.ItemRef(c.ref))

	latest, err := p.s.log.LatestSuccess(p.store, p.itemType, c.ref)
	if err != nil {
		return p.persistenceFailure(log, err)
	}

	if !uploaded(latest) {
		if err := p.deleteRow(c.ref); err != nil {
			return p.persistenceFailure(log, err)
		}
		p.summary.Skipped++
		log.Debug("Removed tombstoned item that was never indexed")
		return nil
	}

	indexRef := *latest.ExternalIndexID
	if delErr := p.s.index.Delete(p.ctx, indexRef); delErr != nil {
		p.summary.Failed++
		p.s.metrics.SyncCall(string(p.itemType), string(domain.SyncActionDelete), string(domain.SyncResultFailure))
		log.Warn("Failed to delete item from index", logger.String("index_ref", indexRef), logger.Error(delErr))

		msg := delErr.Error()
		if err := p.appendLog(c.ref, domain.SyncActionDelete, c.hash, domain.SyncResultFailure, &indexRef, &msg); err != nil {
			return p.persistenceFailure(log, err)
		}
		if domain.IsQuotaExceeded(delErr) {
			return delErr
		}
		return nil
	}

	if err := p.appendLog(c.ref, domain.SyncActionDelete, c.hash, domain.SyncResultSuccess, &indexRef, nil); err != nil {
		return p.persistenceFailure(log, err)
	}
	if err := p.deleteRow(c.ref); err != nil {
		return p.persistenceFailure(log, err)
	}

	p.summary.Deleted++
	p.s.metrics.SyncCall(string(p.itemType), string(domain.SyncActionDelete), string(domain.SyncResultSuccess))
	log.Debug("Item deleted from index", logger.String("index_ref", indexRef))
	return nil
}

func (p *pass) appendLog(itemRef string, action domain.SyncAction, hash string, result domain.SyncResult, indexRef, msg *string) error {
	return p.s.log.Append(p.store, &domain.SyncLogEntry{
		ItemReference:     itemRef,
		ItemType:          p.itemType,
		Action:            action,
		ContentHashAtSync: hash,
		Result:            result,
		ExternalIndexID:   indexRef,
		ErrorMessage:      msg,
	})
}

// setStatus writes the item's sync status. The write is guarded by the hash
// the pass read, so an item re-extracted mid-pass keeps its stale status.
func (p *pass) setStatus(log logger.Logger, c candidate, status domain.SyncStatus) {
	var (
		ok  bool
		err error
	)
	switch p.itemType {
	case domain.ItemTypeRecord:
		ok, err = p.s.records.SetSyncStatus(p.store, c.ref, c.hash, status)
	case domain.ItemTypeContent:
		ok, err = p.s.content.SetSyncStatus(p.store, c.ref, c.hash, status)
	}
	if err != nil {
		log.Warn("Failed to set sync status", logger.String("status", string(status)), logger.Error(err))
		return
	}
	if !ok {
		log.Debug("Item changed during sync, status left unchanged", logger.String("status", string(status)))
	}
}

func (p *pass) deleteRow(ref string) error {
	switch p.itemType {
	case domain.ItemTypeRecord:
		return p.s.records.DeleteTombstoned(p.store, ref)
	case domain.ItemTypeContent:
		return p.s.content.DeleteTombstoned(p.store, ref)
	}
	return nil
}

// persistenceFailure aborts the pass on a lost connection and otherwise
// counts the item as failed.
func (p *pass) persistenceFailure(log logger.Logger, err error) error {
	if domain.IsConnectionLost(err) {
		return fmt.Errorf("sync aborted: %w", err)
	}
	p.summary.Failed++
	log.Warn("Sync bookkeeping failed", logger.Error(err))
	return nil
}

// uploaded reports whether the latest successful log entry left the item
// in the index.
func uploaded(latest *domain.SyncLogEntry) bool {
	return latest != nil &&
		latest.Action == domain.SyncActionUpsert &&
		latest.ExternalIndexID != nil
}
