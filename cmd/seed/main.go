package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS balances (
	user_id BIGINT PRIMARY KEY REFERENCES users (id),
	amount NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (amount >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users (id),
	type TEXT NOT NULL,
	amount NUMERIC(20,2) NOT NULL CHECK (amount > 0),
	comment TEXT,
	related_user_id BIGINT REFERENCES users (id),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions (user_id);
`

const seedUsers = `
INSERT INTO users (name, email) VALUES
	('Test User 1', 'user1@test.com'),
	('Test User 2', 'user2@test.com'),
	('Test User 3', 'user3@test.com')
ON CONFLICT (email) DO NOTHING;
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping db: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	if _, err := db.Exec(seedUsers); err != nil {
		log.Fatalf("failed to seed users: %v", err)
	}

	log.Println("Schema created and test users seeded")
}
