package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/eventgate/server/internal/db"
	sqlitestore "github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store/sqlite"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared cache keeps the database alive while the pool holds a conn.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if _, err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedParticipant inserts p and returns it with its assigned id.
func seedParticipant(t *testing.T, conn *sql.DB, w *db.Worker, p types.Participant) types.Participant {
	t.Helper()
	out, err := sqlitestore.NewParticipantStore(conn, w).Upsert(context.Background(), p)
	if err != nil {
		t.Fatalf("seedParticipant(%s): %v", p.CPF, err)
	}
	return out
}

func johnDoe() types.Participant {
	return types.Participant{
		CPF:        "123.456.789-00",
		Name:       "John Doe",
		Kind:       types.KindPharmacyRepresentative,
		Laboratory: "Acme Labs",
	}
}

func mariaSilva() types.Participant {
	return types.Participant{
		CPF:        "987.654.321-00",
		Name:       "Maria Silva",
		Kind:       types.KindLaboratoryMember,
		Laboratory: "Acme Labs",
	}
}
