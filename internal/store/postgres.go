package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kverrall/namecue/pkg/types"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

const ddlStimuli = `
CREATE TABLE IF NOT EXISTS stimuli (
    id           TEXT         PRIMARY KEY,
    name         TEXT         NOT NULL,
    alternatives TEXT[]       NOT NULL DEFAULT '{}',
    first_letter TEXT         NOT NULL DEFAULT '',
    category     TEXT         NOT NULL DEFAULT '',
    action       TEXT         NOT NULL DEFAULT '',
    association  TEXT         NOT NULL DEFAULT '',
    features     TEXT         NOT NULL DEFAULT '',
    location     TEXT         NOT NULL DEFAULT '',
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_stimuli_category ON stimuli (category);
`

const ddlUserSettings = `
CREATE TABLE IF NOT EXISTS user_settings (
    user_id                 TEXT         PRIMARY KEY,
    acceptable_alternatives BOOLEAN      NOT NULL DEFAULT TRUE,
    partial_matching        BOOLEAN      NOT NULL DEFAULT TRUE,
    word_overlap            BOOLEAN      NOT NULL DEFAULT TRUE,
    stop_word_filtering     BOOLEAN      NOT NULL DEFAULT TRUE,
    synonym_matching        BOOLEAN      NOT NULL DEFAULT TRUE,
    first_name_only         BOOLEAN      NOT NULL DEFAULT TRUE,
    voice_preference        TEXT         NOT NULL DEFAULT 'neutral',
    updated_at              TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates or ensures all required tables exist. It is idempotent
// (CREATE TABLE IF NOT EXISTS) and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlStimuli, ddlUserSettings} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

// PostgresStore is the PostgreSQL-backed [Store]. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore, establishes a connection pool to
// the database at dsn, and runs [Migrate] to ensure the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Stimulus implements [Store].
func (s *PostgresStore) Stimulus(ctx context.Context, id string) (*types.Stimulus, error) {
	const q = `
		SELECT id, name, alternatives, first_letter, category, action, association, features, location
		FROM   stimuli
		WHERE  id = $1`

	var stim types.Stimulus
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&stim.ID,
		&stim.Name,
		&stim.Alternatives,
		&stim.FirstLetter,
		&stim.Category,
		&stim.Action,
		&stim.Association,
		&stim.Features,
		&stim.Location,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stimulus %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get stimulus: %w", err)
	}
	return &stim, nil
}

// ListStimuli implements [Store].
func (s *PostgresStore) ListStimuli(ctx context.Context, category string) ([]types.Stimulus, error) {
	q := `
		SELECT id, name, alternatives, first_letter, category, action, association, features, location
		FROM   stimuli`
	args := []any{}
	if category != "" {
		q += ` WHERE category = $1`
		args = append(args, category)
	}
	q += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list stimuli: %w", err)
	}
	defer rows.Close()

	var out []types.Stimulus
	for rows.Next() {
		var stim types.Stimulus
		if err := rows.Scan(
			&stim.ID,
			&stim.Name,
			&stim.Alternatives,
			&stim.FirstLetter,
			&stim.Category,
			&stim.Action,
			&stim.Association,
			&stim.Features,
			&stim.Location,
		); err != nil {
			return nil, fmt.Errorf("postgres store: scan stimulus: %w", err)
		}
		out = append(out, stim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list stimuli: %w", err)
	}
	return out, nil
}

// SaveStimulus implements [Store].
func (s *PostgresStore) SaveStimulus(ctx context.Context, stim *types.Stimulus) error {
	const q = `
		INSERT INTO stimuli
		    (id, name, alternatives, first_letter, category, action, association, features, location, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
		    name         = EXCLUDED.name,
		    alternatives = EXCLUDED.alternatives,
		    first_letter = EXCLUDED.first_letter,
		    category     = EXCLUDED.category,
		    action       = EXCLUDED.action,
		    association  = EXCLUDED.association,
		    features     = EXCLUDED.features,
		    location     = EXCLUDED.location,
		    updated_at   = now()`

	_, err := s.pool.Exec(ctx, q,
		stim.ID,
		stim.Name,
		stim.Alternatives,
		stim.FirstLetter,
		stim.Category,
		stim.Action,
		stim.Association,
		stim.Features,
		stim.Location,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save stimulus: %w", err)
	}
	return nil
}

// Settings implements [Store].
func (s *PostgresStore) Settings(ctx context.Context, userID string) (types.MatchSettings, error) {
	const q = `
		SELECT acceptable_alternatives, partial_matching, word_overlap,
		       stop_word_filtering, synonym_matching, first_name_only, voice_preference
		FROM   user_settings
		WHERE  user_id = $1`

	var (
		settings types.MatchSettings
		voice    string
	)
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&settings.AcceptableAlternatives,
		&settings.PartialMatching,
		&settings.WordOverlap,
		&settings.StopWordFiltering,
		&settings.SynonymMatching,
		&settings.FirstNameOnly,
		&voice,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.MatchSettings{}, fmt.Errorf("settings for %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return types.MatchSettings{}, fmt.Errorf("postgres store: get settings: %w", err)
	}
	settings.VoicePreference = types.VoiceGender(voice)
	return settings, nil
}

// SaveSettings implements [Store].
func (s *PostgresStore) SaveSettings(ctx context.Context, userID string, settings types.MatchSettings) error {
	const q = `
		INSERT INTO user_settings
		    (user_id, acceptable_alternatives, partial_matching, word_overlap,
		     stop_word_filtering, synonym_matching, first_name_only, voice_preference, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id) DO UPDATE SET
		    acceptable_alternatives = EXCLUDED.acceptable_alternatives,
		    partial_matching        = EXCLUDED.partial_matching,
		    word_overlap            = EXCLUDED.word_overlap,
		    stop_word_filtering     = EXCLUDED.stop_word_filtering,
		    synonym_matching        = EXCLUDED.synonym_matching,
		    first_name_only         = EXCLUDED.first_name_only,
		    voice_preference        = EXCLUDED.voice_preference,
		    updated_at              = now()`

	_, err := s.pool.Exec(ctx, q,
		userID,
		settings.AcceptableAlternatives,
		settings.PartialMatching,
		settings.WordOverlap,
		settings.StopWordFiltering,
		settings.SynonymMatching,
		settings.FirstNameOnly,
		string(settings.VoicePreference),
	)
	if err != nil {
		return fmt.Errorf("postgres store: save settings: %w", err)
	}
	return nil
}

// Ping implements [Store].
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements [Store]. It releases all pooled connections.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
