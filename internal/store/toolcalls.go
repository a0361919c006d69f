package store

import (
	"context"
	"fmt"
	"time"
)

// AppendToolCall appends an audit entry with a monotonically increasing per-run sequence.
func (s *LibSQLStore) AppendToolCall(ctx context.Context, call *ToolCall) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStore("begin tool call tx", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM tool_calls WHERE run_id = ?`, call.RunID,
	).Scan(&seq); err != nil {
		return wrapStore("next tool call seq", err)
	}
	call.Seq = seq
	call.CreatedAt = timeOrNow(call.CreatedAt)

	ok := 0
	if call.OK {
		ok = 1
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tool_calls (run_id, seq, call_id, tool, ok, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		call.RunID, call.Seq, call.CallID, call.Tool, ok, nullStr(call.Error), call.DurationMs, call.CreatedAt,
	)
	if err != nil {
		return wrapStore(fmt.Sprintf("insert tool call for run %s", call.RunID), err)
	}
	if id, err := res.LastInsertId(); err == nil {
		call.ID = id
	}
	if err := tx.Commit(); err != nil {
		return wrapStore("commit tool call", err)
	}
	return nil
}

// ListToolCalls returns a run's tool calls in dispatch order.
func (s *LibSQLStore) ListToolCalls(ctx context.Context, runID string) ([]*ToolCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, call_id, tool, ok, error, duration_ms, created_at
		 FROM tool_calls WHERE run_id = ? ORDER BY seq ASC`, runID,
	)
	if err != nil {
		return nil, wrapStore("list tool calls", err)
	}
	defer rows.Close()

	var calls []*ToolCall
	for rows.Next() {
		c := &ToolCall{}
		var (
			ok      int
			errMsg  *string
			created time.Time
		)
		if err := rows.Scan(&c.ID, &c.RunID, &c.Seq, &c.CallID, &c.Tool, &ok, &errMsg, &c.DurationMs, &created); err != nil {
			return nil, wrapStore("scan tool call", err)
		}
		c.OK = ok == 1
		if errMsg != nil {
			c.Error = *errMsg
		}
		c.CreatedAt = created
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
