package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/cropcurator/internal/models"
)

// PostgresJournal stores journal entries in PostgreSQL, with crop boxes in a
// vector column so similar regions can be looked up.
type PostgresJournal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	videos sync.Map // name -> id
}

// NewPostgresJournal connects to the database at connString
func NewPostgresJournal(ctx context.Context, connString string, logger *slog.Logger) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJournal{pool: pool, logger: logger.With("component", "journal")}, nil
}

func (s *PostgresJournal) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// videoID gets an existing video entry or creates a new one
func (s *PostgresJournal) videoID(ctx context.Context, tx pgx.Tx, videoName string) (int, error) {
	if id, ok := s.videos.Load(videoName); ok {
		return id.(int), nil
	}

	var id int
	err := tx.QueryRow(ctx,
		"SELECT id FROM videos WHERE name = $1",
		videoName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx,
			"INSERT INTO videos (name, created_at) VALUES ($1, $2) RETURNING id",
			videoName, time.Now()).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to create video entry: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("error checking for existing video: %w", err)
	}
	return id, nil
}

// Record stores the entry and its items in one transaction
func (s *PostgresJournal) Record(ctx context.Context, entry models.JournalEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	videoID, err := s.videoID(ctx, tx, entry.VideoName)
	if err != nil {
		return err
	}

	var commitID int
	err = tx.QueryRow(ctx,
		`INSERT INTO commits
        (video_id, action, frame_index, label, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`,
		videoID, entry.Action, entry.FrameIndex, entry.Label, entry.Time).Scan(&commitID)
	if err != nil {
		return fmt.Errorf("failed to store commit: %w", err)
	}

	for _, it := range entry.Items {
		var bbox any
		if it.BBox != nil {
			bbox = bboxVector(*it.BBox)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO commit_items (commit_id, ref, bbox) VALUES ($1, $2, $3)",
			commitID, it.Ref, bbox); err != nil {
			return fmt.Errorf("failed to store commit item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit journal entry: %w", err)
	}
	s.videos.Store(entry.VideoName, videoID)
	s.logger.Debug("journal entry stored", "action", entry.Action, "video", entry.VideoName, "items", len(entry.Items))
	return nil
}

// SimilarRegions finds saved crops with the nearest boxes
func (s *PostgresJournal) SimilarRegions(ctx context.Context, bbox models.BBox, limit int) ([]RegionMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT v.name, c.frame_index, c.label, i.ref, i.bbox,
        i.bbox <-> $1 AS distance
        FROM commit_items i
        JOIN commits c ON i.commit_id = c.id
        JOIN videos v ON c.video_id = v.id
        WHERE c.action = 'save' AND i.bbox IS NOT NULL
        ORDER BY i.bbox <-> $1
        LIMIT $2`,
		bboxVector(bbox), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar regions: %w", err)
	}
	defer rows.Close()

	var results []RegionMatch
	for rows.Next() {
		var m RegionMatch
		var vec pgvector.Vector
		if err := rows.Scan(&m.VideoName, &m.FrameIndex, &m.Label, &m.Ref, &vec, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		m.BBox = vectorBBox(vec)
		results = append(results, m)
	}
	return results, rows.Err()
}

func bboxVector(b models.BBox) pgvector.Vector {
	return pgvector.NewVector([]float32{float32(b[0]), float32(b[1]), float32(b[2]), float32(b[3])})
}

func vectorBBox(v pgvector.Vector) models.BBox {
	var b models.BBox
	for i, f := range v.Slice() {
		if i >= len(b) {
			break
		}
		b[i] = float64(f)
	}
	return b
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, connString string) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS videos (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(name)
        );

        CREATE TABLE IF NOT EXISTS commits (
            id SERIAL PRIMARY KEY,
            video_id INTEGER REFERENCES videos(id) ON DELETE CASCADE,
            action VARCHAR(16) NOT NULL,
            frame_index INTEGER NOT NULL,
            label TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS commit_items (
            id SERIAL PRIMARY KEY,
            commit_id INTEGER REFERENCES commits(id) ON DELETE CASCADE,
            ref TEXT NOT NULL,
            bbox vector(4)
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_commits_video_id ON commits(video_id);
        CREATE INDEX IF NOT EXISTS idx_commit_items_commit_id ON commit_items(commit_id);
        CREATE INDEX IF NOT EXISTS idx_commit_items_bbox ON commit_items USING ivfflat (bbox vector_l2_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}
	return nil
}
