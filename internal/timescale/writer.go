package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"cex-dex-arb-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// EdgeSample is one fee-adjusted spread observation, taken by the tick loop.
type EdgeSample struct {
	Time      time.Time
	CEXBid    float64
	CEXAsk    float64
	DEXBid    float64
	DEXAsk    float64
	OpenEdge  float64
	CloseEdge float64
}

// PositionSnapshot is the machine's view at sample time. Telemetry only;
// trade history is deliberately not persisted.
type PositionSnapshot struct {
	Time      time.Time
	State     string
	CEXSymbol string
	DEXSymbol string
	HeldQty   float64
}

// Writer pushes samples to TimescaleDB off the hot path. Full queues drop
// rather than block the strategy.
type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	edges     chan EdgeSample
	positions chan PositionSnapshot
	started   atomic.Bool
	dropEdge  atomic.Uint64
	dropPos   atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		edges:     make(chan EdgeSample, queueSize),
		positions: make(chan PositionSnapshot, queueSize),
	}
	if err := w.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueEdge(sample EdgeSample) {
	if w == nil {
		return
	}
	select {
	case w.edges <- sample:
	default:
		if w.dropEdge.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale edge queue full")
		}
	}
}

func (w *Writer) EnqueuePosition(snapshot PositionSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.positions <- snapshot:
	default:
		if w.dropPos.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale position queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample := <-w.edges:
			w.writeEdge(ctx, sample)
		case snap := <-w.positions:
			w.writePosition(ctx, snap)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		cex_bid DOUBLE PRECISION NOT NULL,
		cex_ask DOUBLE PRECISION NOT NULL,
		dex_bid DOUBLE PRECISION NOT NULL,
		dex_ask DOUBLE PRECISION NOT NULL,
		open_edge DOUBLE PRECISION NOT NULL,
		close_edge DOUBLE PRECISION NOT NULL
	)`, w.table("edge_samples"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		state TEXT NOT NULL,
		cex_symbol TEXT NOT NULL,
		dex_symbol TEXT NOT NULL,
		held_qty DOUBLE PRECISION NOT NULL
	)`, w.table("position_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	for _, table := range []string{"edge_samples", "position_snapshots"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(table))); err != nil && w.log != nil {
			w.log.Warn("hypertable create failed", zap.String("table", table), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeEdge(ctx context.Context, sample EdgeSample) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (ts, cex_bid, cex_ask, dex_bid, dex_ask, open_edge, close_edge)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, w.table("edge_samples"))
	if _, err := w.db.ExecContext(ctx, query,
		sample.Time, sample.CEXBid, sample.CEXAsk, sample.DEXBid, sample.DEXAsk, sample.OpenEdge, sample.CloseEdge,
	); err != nil && w.log != nil {
		w.log.Warn("edge sample write failed", zap.Error(err))
	}
}

func (w *Writer) writePosition(ctx context.Context, snap PositionSnapshot) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (ts, state, cex_symbol, dex_symbol, held_qty)
		VALUES ($1, $2, $3, $4, $5)`, w.table("position_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time, snap.State, snap.CEXSymbol, snap.DEXSymbol, snap.HeldQty,
	); err != nil && w.log != nil {
		w.log.Warn("position snapshot write failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
