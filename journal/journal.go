// Package journal keeps an append-only SQLite record of bridge traffic and
// overlay decisions. It exists for field debugging: when a user reports a
// blank screen or a spinner flash, the journal shows whether APP_READY was
// late, the fallback timer won, or a deep link fell back to a reload.
//
// Writes are asynchronous and lossy: a failing journal must never block or
// slow the protocol path.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerbook/appshell/idgen"
)

// Event kinds recorded by the shell.
const (
	KindMessageIn  = "message_in"  // content → shell
	KindMessageOut = "message_out" // shell → content
	KindOverlay    = "overlay"     // arm / dismiss decisions
	KindDeepLink   = "deep_link"   // resolution of a deep-link request
)

// Entry is one journal row.
type Entry struct {
	EntryID   string
	Timestamp time.Time
	Kind      string
	Subject   string // message type, overlay reason, or deep-link result
	Nav       uint64 // navigation id, 0 when not applicable
	Detail    string // optional JSON
}

// Filter narrows Query results. Zero fields match everything.
type Filter struct {
	Kind    string
	Subject string
	Since   time.Time
	Limit   int // default 100
}

// Journal persists entries through a buffered async writer.
type Journal struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger

	ch   chan Entry
	stop chan struct{}
	done chan struct{}
}

// Option configures a Journal.
type Option func(*Journal)

// WithIDGenerator overrides the entry ID strategy.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(j *Journal) { j.newID = gen }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// New creates a Journal over an open database and starts its writer.
func New(db *sql.DB, opts ...Option) *Journal {
	j := &Journal{
		db:     db,
		newID:  idgen.Prefixed("jrn_", idgen.Default),
		logger: slog.Default(),
		ch:     make(chan Entry, 512),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(j)
	}
	go j.writeLoop()
	return j
}

// Record queues an entry. Never blocks: when the buffer is full the entry is
// dropped with a warning.
func (j *Journal) Record(e Entry) {
	if e.EntryID == "" {
		e.EntryID = j.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case j.ch <- e:
	default:
		j.logger.Warn("journal: buffer full, entry dropped", "kind", e.Kind, "subject", e.Subject)
	}
}

// Query returns entries matching the filter, newest first.
func (j *Journal) Query(ctx context.Context, f Filter) ([]Entry, error) {
	q := `SELECT entry_id, timestamp, kind, subject, nav, detail
		FROM shell_journal WHERE 1=1`
	var args []any

	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.Subject != "" {
		q += " AND subject = ?"
		args = append(args, f.Subject)
	}
	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}

	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var detail sql.NullString
		if err := rows.Scan(&e.EntryID, &ts, &e.Kind, &e.Subject, &e.Nav, &detail); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		if detail.Valid {
			e.Detail = detail.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes entries older than the retention window and returns the
// number removed.
func (j *Journal) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	res, err := j.db.ExecContext(ctx, "DELETE FROM shell_journal WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("journal: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close drains pending entries and stops the writer.
func (j *Journal) Close() error {
	close(j.stop)
	<-j.done
	return nil
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	for {
		select {
		case e := <-j.ch:
			j.insert(e)
		case <-j.stop:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case e := <-j.ch:
					j.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) insert(e Entry) {
	_, err := j.db.Exec(`
		INSERT INTO shell_journal (entry_id, timestamp, kind, subject, nav, detail)
		VALUES (?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp.UnixMilli(), e.Kind, e.Subject, e.Nav, e.Detail)
	if err != nil {
		j.logger.Error("journal: insert failed", "error", err, "kind", e.Kind)
	}
}
