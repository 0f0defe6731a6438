// Command seed loads a minimal working dataset: one admin account, a few
// students and a few catalogue entries. Inserts are idempotent so the
// script can be re-run after schema resets.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yadhu-dev/library-automation-api/pkg/config"
	"github.com/yadhu-dev/library-automation-api/pkg/database"
)

func main() {
	var (
		adminEmail    string
		adminPassword string
	)
	flag.StringVar(&adminEmail, "admin-email", "admin@library.local", "email for the seeded admin account")
	flag.StringVar(&adminPassword, "admin-password", "changeme", "password for the seeded admin account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, 'Library Admin', 'ADMIN', true, NOW(), NOW())
		ON CONFLICT (email) DO NOTHING`, uuid.NewString(), adminEmail, string(hash)); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}

	students := [][]string{
		{"IS2524", "Asha Menon", "Instrumentation Science", "2025–27", "asha@college.local"},
		{"IS2510", "Ravi Kumar", "Instrumentation Science", "2025–27", "ravi@college.local"},
		{"IS2318", "Divya Nair", "Instrumentation Science", "2023–25", "divya@college.local"},
	}
	for _, s := range students {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO students (id, roll_no, name, department, batch, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			ON CONFLICT (roll_no) DO NOTHING`, uuid.NewString(), s[0], s[1], s[2], s[3], s[4]); err != nil {
			log.Fatalf("failed to seed student %s: %v", s[0], err)
		}
	}

	books := []struct {
		id, name, author string
		copies           int
	}{
		{"BK001", "Signals and Systems", "Oppenheim", 3},
		{"BK002", "Transducers and Instrumentation", "Murthy", 2},
		{"BK003", "Process Control", "Stephanopoulos", 2},
	}
	for _, b := range books {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO books (id, book_id, book_name, author, total_count, available_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5, NOW(), NOW())
			ON CONFLICT (book_id) DO NOTHING`, uuid.NewString(), b.id, b.name, b.author, b.copies); err != nil {
			log.Fatalf("failed to seed book %s: %v", b.id, err)
		}
	}

	log.Printf("seed complete: admin %s, %d students, %d books", adminEmail, len(students), len(books))
}
