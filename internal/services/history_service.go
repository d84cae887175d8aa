package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deckgenius/internal/models"
)

const historyBuffer = 256

// historyOp is one unit of work for the writer. A nil entry with clear unset
// is a barrier.
type historyOp struct {
	entry *models.PresentedRow
	clear bool
	done  chan error
}

// HistoryService keeps the audit log of presented rows. Enqueue, Clear and
// Flush go through a single writer so they apply in call order.
type HistoryService struct {
	database *sql.DB
	logger   zerolog.Logger

	ops    chan historyOp
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewHistoryService creates a history service and starts its writer
func NewHistoryService(database *sql.DB, logger zerolog.Logger) *HistoryService {
	hs := &HistoryService{
		database: database,
		logger:   logger.With().Str("component", "history").Logger(),
		ops:      make(chan historyOp, historyBuffer),
		done:     make(chan struct{}),
	}
	go hs.run()
	return hs
}

func (hs *HistoryService) run() {
	defer close(hs.done)
	for op := range hs.ops {
		var err error
		switch {
		case op.entry != nil:
			e := op.entry
			if err = hs.Record(e.Identity, e.Row, e.SlideID, e.PresentedAt); err != nil {
				hs.logger.Warn().Err(err).Str("row", e.Identity).Msg("failed to record presented row")
			}
		case op.clear:
			err = hs.clear()
		}
		if op.done != nil {
			op.done <- err
		}
	}
}

// Enqueue schedules a presented row for the writer and never blocks. A full
// buffer drops the entry.
func (hs *HistoryService) Enqueue(identity string, row models.Row, slideID string, at time.Time) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	if hs.closed {
		hs.logger.Warn().Str("row", identity).Msg("history closed, dropping presented row")
		return
	}
	op := historyOp{entry: &models.PresentedRow{Identity: identity, Row: row, SlideID: slideID, PresentedAt: at}}
	select {
	case hs.ops <- op:
	default:
		hs.logger.Warn().Str("row", identity).Msg("history buffer full, dropping presented row")
	}
}

// submit runs op on the writer after everything queued before it and waits
// for the result. Once closed it runs inline.
func (hs *HistoryService) submit(op historyOp) error {
	hs.mu.RLock()
	if hs.closed {
		hs.mu.RUnlock()
		if op.clear {
			return hs.clear()
		}
		return nil
	}
	op.done = make(chan error, 1)
	hs.ops <- op
	hs.mu.RUnlock()
	return <-op.done
}

// Flush waits until every row enqueued so far is written
func (hs *HistoryService) Flush() {
	_ = hs.submit(historyOp{})
}

// Close drains pending writes and stops the writer. The database stays open.
func (hs *HistoryService) Close() {
	hs.mu.Lock()
	if hs.closed {
		hs.mu.Unlock()
		<-hs.done
		return
	}
	hs.closed = true
	close(hs.ops)
	hs.mu.Unlock()
	<-hs.done
}

// Record appends a presented row
func (hs *HistoryService) Record(identity string, row models.Row, slideID string, at time.Time) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	_, err = hs.database.Exec(`INSERT INTO presented_rows (identity, row_json, slide_id, presented_at) VALUES (?, ?, ?, ?)`,
		identity, string(body), slideID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert presented row: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. limit <= 0 means all.
func (hs *HistoryService) List(limit int) ([]models.PresentedRow, error) {
	query := `SELECT id, identity, row_json, slide_id, presented_at FROM presented_rows ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := hs.database.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []models.PresentedRow{}
	for rows.Next() {
		var e models.PresentedRow
		var body string
		if err := rows.Scan(&e.ID, &e.Identity, &body, &e.SlideID, &e.PresentedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		decoded, err := models.DecodeRows([]byte("[" + body + "]"))
		if err != nil || len(decoded) != 1 {
			hs.logger.Warn().Int64("id", e.ID).Msg("skipping unreadable history row")
			continue
		}
		e.Row = decoded[0]
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Rows returns the presented rows oldest first, one per identity, for
// restoring the history source on startup.
func (hs *HistoryService) Rows() ([]models.Row, error) {
	entries, err := hs.List(0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	out := make([]models.Row, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Identity != "" {
			if _, dup := seen[e.Identity]; dup {
				continue
			}
			seen[e.Identity] = struct{}{}
		}
		out = append(out, e.Row)
	}
	return out, nil
}

// Clear removes the whole audit log, including rows enqueued before the call
func (hs *HistoryService) Clear() error {
	return hs.submit(historyOp{clear: true})
}

func (hs *HistoryService) clear() error {
	if _, err := hs.database.Exec(`DELETE FROM presented_rows`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
