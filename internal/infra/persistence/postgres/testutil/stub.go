// Package testutil provides a stub database/sql driver for postgres store tests.
// It understands just enough SQL to back the bucket snapshot table.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// StubConn records statements and keeps inserted rows per table.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Tables     map[string][]map[string]any
	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
	FailTables map[string]bool
}

var stubSeq atomic.Uint64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Rows returns a copy of the rows stored for table.
func (c *StubConn) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, len(c.Tables[table]))
	copy(out, c.Tables[table])
	return out
}

// Seed appends a row to table.
func (c *StubConn) Seed(table string, row map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Tables[table] = append(c.Tables[table], row)
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext. Inserts honour ON CONFLICT by
// replacing rows that share the first column.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		return driver.RowsAffected(0), nil
	}
	table, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("exec fail for %s", table)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("column/arg mismatch for %s", table)
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	if strings.Contains(strings.ToUpper(query), "ON CONFLICT") {
		primary := cols[0]
		filtered := c.Tables[table][:0:0]
		for _, existing := range c.Tables[table] {
			if existing[primary] != row[primary] {
				filtered = append(filtered, existing)
			}
		}
		c.Tables[table] = filtered
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for single-table selects.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	table, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("query fail for %s", table)
	}
	values := make([][]driver.Value, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values, err: c.RowsErr}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}

func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	return strings.ToLower(strings.TrimSpace(rest[:open])), splitColumns(rest[open+1 : closeIdx]), nil
}

func parseSelect(query string) (string, []string, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if !strings.HasPrefix(lower, "select ") {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fields := strings.Fields(lower[fromIdx+len(" from "):])
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	return fields[0], splitColumns(lower[len("select "):fromIdx]), nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
