package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/database"
	"github.com/talentgate/exam-backend/internal/logger"
)

type seedQuestion struct {
	text      string
	options   []string
	correct   string
	timeLimit *int
}

func limit(n int) *int { return &n }

var questions = []seedQuestion{
	{"Which HTTP status means the resource was created?", []string{"200", "201", "204", "302"}, "201", nil},
	{"What does SQL stand for?", []string{"Structured Query Language", "Simple Query Logic", "Sequential Query List", "Standard Question Language"}, "Structured Query Language", nil},
	{"Which data structure is FIFO?", []string{"Stack", "Queue", "Tree", "Heap"}, "Queue", limit(15)},
	{"Big-O of binary search on a sorted array?", []string{"O(1)", "O(log n)", "O(n)", "O(n log n)"}, "O(log n)", nil},
	{"Which git command creates a new branch and switches to it?", []string{"git branch -d", "git switch -c", "git merge", "git stash"}, "git switch -c", limit(30)},
	{"What port does HTTPS use by default?", []string{"80", "443", "8080", "22"}, "443", limit(10)},
}

var candidates = []struct{ name, email string }{
	{"Ayu Lestari", "ayu.lestari@example.com"},
	{"Budi Santoso", "budi.santoso@example.com"},
	{"Citra Kirana", "citra.kirana@example.com"},
	{"Dimas Anggara", "dimas.anggara@example.com"},
	{"Eka Putri", "eka.putri@example.com"},
}

func main() {
	var title string
	var validFor time.Duration
	flag.StringVar(&title, "title", "Backend Engineer Screening", "Exam title")
	flag.DurationVar(&validFor, "valid-for", 72*time.Hour, "How long the issued tokens stay valid")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	fmt.Printf("=== Seeding exam %q ===\n", title)

	// ─── Exam and Questions ────────────────────────────────────────────
	var examID uuid.UUID
	if err := tx.QueryRow(ctx, "INSERT INTO exams (title) VALUES ($1) RETURNING id", title).Scan(&examID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	rows := make([][]any, 0, len(questions))
	for i, q := range questions {
		opts, err := json.Marshal(q.options)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode options")
		}
		rows = append(rows, []any{examID, q.text, string(opts), q.correct, q.timeLimit, i + 1})
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"exam_id", "question_text", "options", "correct_option", "time_limit_seconds", "order_num"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to copy questions")
	}
	fmt.Printf("Created exam %s with %d questions\n", examID, n)

	// ─── Candidates and Assignments ────────────────────────────────────
	batch := &pgx.Batch{}
	for _, c := range candidates {
		batch.Queue(
			`INSERT INTO candidates (name, email) VALUES ($1, $2)
			 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, c.name, c.email)
	}
	br := tx.SendBatch(ctx, batch)
	ids := make([]int, len(candidates))
	for i := range candidates {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			_ = br.Close()
			log.Fatal().Err(err).Str("email", candidates[i].email).Msg("Failed to upsert candidate")
		}
	}
	if err := br.Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to close batch")
	}

	expiresAt := time.Now().Add(validFor)
	tokens := make([]string, len(candidates))
	for i, id := range ids {
		tokens[i] = strings.ReplaceAll(uuid.NewString(), "-", "")
		if _, err := tx.Exec(ctx,
			`INSERT INTO exam_assignments (token, candidate_id, exam_id, expires_at)
			 VALUES ($1, $2, $3, $4)`, tokens[i], id, examID, expiresAt); err != nil {
			log.Fatal().Err(err).Int("candidate_id", id).Msg("Failed to create assignment")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to commit seed")
	}

	fmt.Printf("\nSeed completed! Tokens valid until %s:\n", expiresAt.Format(time.RFC3339))
	for i, c := range candidates {
		fmt.Printf("  %-16s %s\n", c.name, tokens[i])
	}
}
