package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBUpsertsAndQueriesBuckets(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{`{"c1":{}}`, `{"c1":{},"c2":{}}`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "companies"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("ExecContext upsert: %v", err)
		}
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "skills"}, {Value: []byte(`{}`)}}); err != nil {
		t.Fatalf("ExecContext upsert: %v", err)
	}
	if got := conn.Rows("state"); len(got) != 2 {
		t.Fatalf("expected one row per bucket, got %v", got)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	dest := make([]driver.Value, 2)
	seen := map[string]string{}
	for rows.Next(dest) == nil {
		seen[dest[0].(string)] = string(dest[1].([]byte))
	}
	if seen["companies"] != `{"c1":{},"c2":{}}` || seen["skills"] != `{}` {
		t.Fatalf("unexpected rows: %v", seen)
	}
}

func TestStubDBFailureSwitches(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailTables = map[string]bool{"state": true}
	if _, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
}
