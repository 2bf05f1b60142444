package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the accounts schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			surname TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			access_level INTEGER NOT NULL DEFAULT 0,
			company TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE UNIQUE INDEX idx_users_email ON users(email);

		CREATE TABLE guests (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			company TEXT NOT NULL,
			access_level INTEGER NOT NULL DEFAULT 0,
			consumed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE UNIQUE INDEX idx_guests_token ON guests(token);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying accounts migration: %v", err)
	}

	return db
}

const testSecret = "unit-test-shared-secret-0123456789ab"

// seedTestUser inserts a test user with the given email and password.
func seedTestUser(t *testing.T, db *sql.DB, email, password string) *User {
	t.Helper()

	verifier := NewPepperedVerifier(testSecret)
	hash, err := verifier.Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		Email:        email,
		Name:         "Test",
		Surname:      "User",
		PasswordHash: hash,
		AccessLevel:  1,
		Company:      "acme",
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}
