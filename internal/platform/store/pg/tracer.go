package pg

import (
	"context"
	"strings"
	"time"

	"dayonme/internal/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Tracer implements pgx.QueryTracer and logs every statement with its latency
// It logs regardless of the root level since it is only installed when SQL logging is asked for
type Tracer struct {
	log    logger.Logger
	slowMs int
	now    func() time.Time
}

var _ pgx.QueryTracer = (*Tracer)(nil)

type startKey struct{}

type startInfo struct {
	at   time.Time
	sql  string
	args []any
}

// NewTracer builds a tracer; queries at or above slowMs log at warn, negative disables slow marking
func NewTracer(root logger.Logger, slowMs int) *Tracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &Tracer{log: ll, slowMs: slowMs, now: time.Now}
}

// TraceQueryStart stashes the start time on the query context
func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, startKey{}, startInfo{at: t.now(), sql: data.SQL, args: data.Args})
}

// TraceQueryEnd logs the finished query
func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	si, _ := ctx.Value(startKey{}).(startInfo)
	elapsed := t.now().Sub(si.at)
	slow := t.slowMs >= 0 && elapsed >= time.Duration(t.slowMs)*time.Millisecond

	evt := t.log.Info()
	if slow {
		evt = t.log.Warn()
	}
	evt.Float64("elapsed_ms", float64(elapsed.Microseconds())/1000.0).
		Bool("slow", slow).
		Str("sql", compact(si.sql)).
		Int("nargs", len(si.args)).
		Str("tag", data.CommandTag.String()).
		Err(data.Err).
		Msg("pg query")
}

// compact collapses whitespace runs to single spaces
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
