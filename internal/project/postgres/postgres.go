// Package postgres provides the PostgreSQL-backed implementation of
// [project.Store] using pgx. Structured voice settings are stored as JSONB;
// audio payloads live in a BYTEA column; ownership cascades are enforced by
// foreign keys, and the multi-row invariants (reconciliation plans, variant
// numbering, exclusive activation, delete-with-renumbering) are enforced with
// transactions and row locks.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/narravox/narravox/internal/project"
)

// Schema is the SQL DDL for the NarraVox tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    voice_id       TEXT,
    voice_settings JSONB,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunks (
    id                    TEXT PRIMARY KEY,
    project_id            TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    text                  TEXT NOT NULL DEFAULT '',
    position              INTEGER NOT NULL,
    use_custom_settings   BOOLEAN NOT NULL DEFAULT FALSE,
    custom_voice_id       TEXT,
    custom_voice_settings JSONB
);
CREATE INDEX IF NOT EXISTS idx_chunks_project_position ON chunks(project_id, position);

CREATE TABLE IF NOT EXISTS audio_variants (
    id                  TEXT PRIMARY KEY,
    chunk_id            TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    variant_number      INTEGER NOT NULL,
    status              TEXT NOT NULL DEFAULT 'processing',
    progress            INTEGER NOT NULL DEFAULT 0,
    is_active           BOOLEAN NOT NULL DEFAULT FALSE,
    error_message       TEXT,
    used_voice_id       TEXT NOT NULL,
    used_voice_settings JSONB NOT NULL,
    audio_data          BYTEA,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audio_variants_chunk_number ON audio_variants(chunk_id, variant_number);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is a [project.Store] backed by PostgreSQL.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ project.Store = (*Store)(nil)

// NewStore creates a new [Store] on the given connection or pool. The caller
// is responsible for calling [Store.Migrate] before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Connect establishes a connection pool to the database at dsn, pings it,
// runs [Store.Migrate], and returns the ready store together with the pool so
// the caller can close it on shutdown.
func Connect(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("project store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("project store: ping: %w", err)
	}
	st := NewStore(pool)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool, nil
}

// Migrate executes the [Schema] DDL, creating the tables and indexes if they
// do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("project store: migrate: %w", err)
	}
	return nil
}

// CreateProject implements [project.Store.CreateProject].
func (s *Store) CreateProject(ctx context.Context, name string) (project.Project, error) {
	if err := project.ValidateProjectName(name); err != nil {
		return project.Project{}, err
	}
	id, err := project.NewID()
	if err != nil {
		return project.Project{}, err
	}

	const query = `
		INSERT INTO projects (id, name) VALUES ($1, $2)
		RETURNING created_at, updated_at`

	p := project.Project{ID: id, Name: name}
	if err := s.db.QueryRow(ctx, query, id, name).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return project.Project{}, fmt.Errorf("project store: create project: %w", err)
	}
	return p, nil
}

// GetProject implements [project.Store.GetProject].
func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	const query = `
		SELECT id, name, voice_id, voice_settings, created_at, updated_at
		FROM projects WHERE id = $1`

	var (
		p            project.Project
		settingsJSON []byte
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.VoiceID, &settingsJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrProjectNotFound
		}
		return project.Project{}, fmt.Errorf("project store: get project %q: %w", id, err)
	}
	if p.VoiceSettings, err = unmarshalSettings(settingsJSON); err != nil {
		return project.Project{}, err
	}
	return p, nil
}

// ListProjects implements [project.Store.ListProjects].
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	const query = `
		SELECT id, name, voice_id, voice_settings, created_at, updated_at
		FROM projects ORDER BY created_at DESC, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("project store: list projects: %w", err)
	}
	defer rows.Close()

	var out []project.Project
	for rows.Next() {
		var (
			p            project.Project
			settingsJSON []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.VoiceID, &settingsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("project store: list projects scan: %w", err)
		}
		if p.VoiceSettings, err = unmarshalSettings(settingsJSON); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("project store: list projects: %w", err)
	}
	return out, nil
}

// RenameProject implements [project.Store.RenameProject].
func (s *Store) RenameProject(ctx context.Context, id, name string) error {
	if err := project.ValidateProjectName(name); err != nil {
		return err
	}
	const query = `UPDATE projects SET name = $2, updated_at = now() WHERE id = $1`
	return s.execProject(ctx, "rename project", query, id, name)
}

// SetProjectVoice implements [project.Store.SetProjectVoice].
func (s *Store) SetProjectVoice(ctx context.Context, id string, voiceID *string, settings *project.VoiceSettings) error {
	settingsJSON, err := marshalSettings(settings)
	if err != nil {
		return err
	}
	const query = `
		UPDATE projects SET voice_id = $2, voice_settings = $3, updated_at = now()
		WHERE id = $1`
	return s.execProject(ctx, "set project voice", query, id, voiceID, settingsJSON)
}

// TouchProject implements [project.Store.TouchProject].
func (s *Store) TouchProject(ctx context.Context, id string) error {
	const query = `UPDATE projects SET updated_at = now() WHERE id = $1`
	return s.execProject(ctx, "touch project", query, id)
}

// DeleteProject implements [project.Store.DeleteProject]. Chunks and
// variants go with it via the FK cascades.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	return s.execProject(ctx, "delete project", query, id)
}

// execProject runs a single-row project statement and maps a zero-row result
// to [project.ErrProjectNotFound].
func (s *Store) execProject(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("project store: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return project.ErrProjectNotFound
	}
	return nil
}

// GetChunk implements [project.Store.GetChunk].
func (s *Store) GetChunk(ctx context.Context, id string) (project.Chunk, error) {
	const query = `
		SELECT id, project_id, text, position, use_custom_settings, custom_voice_id, custom_voice_settings
		FROM chunks WHERE id = $1`

	var (
		c            project.Chunk
		settingsJSON []byte
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ProjectID, &c.Text, &c.Order, &c.UseCustomSettings, &c.CustomVoiceID, &settingsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Chunk{}, project.ErrChunkNotFound
		}
		return project.Chunk{}, fmt.Errorf("project store: get chunk %q: %w", id, err)
	}
	if c.CustomVoiceSettings, err = unmarshalSettings(settingsJSON); err != nil {
		return project.Chunk{}, err
	}
	return c, nil
}

// ListChunks implements [project.Store.ListChunks].
func (s *Store) ListChunks(ctx context.Context, projectID string) ([]project.Chunk, error) {
	if err := s.projectExists(ctx, projectID); err != nil {
		return nil, err
	}
	return s.listChunks(ctx, s.db, projectID)
}

// listChunks reads the ordered chunk list through q, which may be the pool
// or an open transaction.
func (s *Store) listChunks(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, projectID string) ([]project.Chunk, error) {
	const query = `
		SELECT id, project_id, text, position, use_custom_settings, custom_voice_id, custom_voice_settings
		FROM chunks WHERE project_id = $1 ORDER BY position`

	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("project store: list chunks: %w", err)
	}
	defer rows.Close()

	var out []project.Chunk
	for rows.Next() {
		var (
			c            project.Chunk
			settingsJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Text, &c.Order, &c.UseCustomSettings, &c.CustomVoiceID, &settingsJSON); err != nil {
			return nil, fmt.Errorf("project store: list chunks scan: %w", err)
		}
		if c.CustomVoiceSettings, err = unmarshalSettings(settingsJSON); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("project store: list chunks: %w", err)
	}
	return out, nil
}

// SetChunkVoice implements [project.Store.SetChunkVoice].
func (s *Store) SetChunkVoice(ctx context.Context, id string, useCustom bool, voiceID *string, settings *project.VoiceSettings) error {
	if !useCustom {
		voiceID = nil
		settings = nil
	}
	settingsJSON, err := marshalSettings(settings)
	if err != nil {
		return err
	}

	const query = `
		UPDATE chunks
		SET use_custom_settings = $2, custom_voice_id = $3, custom_voice_settings = $4
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, useCustom, voiceID, settingsJSON)
	if err != nil {
		return fmt.Errorf("project store: set chunk voice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return project.ErrChunkNotFound
	}
	return nil
}

// ApplyChunkPlan implements [project.Store.ApplyChunkPlan]. All mutations of
// the plan run inside one transaction; a failure of any sub-operation rolls
// the whole reconciliation back.
func (s *Store) ApplyChunkPlan(ctx context.Context, projectID string, plan project.ChunkPlan) ([]project.Chunk, error) {
	if err := s.projectExists(ctx, projectID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("project store: apply chunk plan: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range plan.Updates {
		tag, err := tx.Exec(ctx,
			`UPDATE chunks SET text = $2, position = $3 WHERE id = $1 AND project_id = $4`,
			u.ID, u.Text, u.Order, projectID)
		if err != nil {
			return nil, fmt.Errorf("project store: apply chunk plan: update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, project.ErrChunkNotFound
		}
		if u.PurgeVariants {
			if _, err := tx.Exec(ctx, `DELETE FROM audio_variants WHERE chunk_id = $1`, u.ID); err != nil {
				return nil, fmt.Errorf("project store: apply chunk plan: purge variants: %w", err)
			}
		}
	}

	for _, cr := range plan.Creates {
		id, err := project.NewID()
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, project_id, text, position) VALUES ($1, $2, $3, $4)`,
			id, projectID, cr.Text, cr.Order); err != nil {
			return nil, fmt.Errorf("project store: apply chunk plan: create: %w", err)
		}
	}

	for _, id := range plan.DeleteIDs {
		tag, err := tx.Exec(ctx, `DELETE FROM chunks WHERE id = $1 AND project_id = $2`, id, projectID)
		if err != nil {
			return nil, fmt.Errorf("project store: apply chunk plan: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, project.ErrChunkNotFound
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE projects SET updated_at = now() WHERE id = $1`, projectID); err != nil {
		return nil, fmt.Errorf("project store: apply chunk plan: touch project: %w", err)
	}

	chunks, err := s.listChunks(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("project store: apply chunk plan: commit: %w", err)
	}
	return chunks, nil
}

// variantSummaryColumns selects everything except the audio payload; payload
// presence is reported as a boolean so listings stay cheap.
const variantSummaryColumns = `
	id, chunk_id, variant_number, status, progress, is_active, error_message,
	used_voice_id, used_voice_settings, (audio_data IS NOT NULL), created_at`

// scanVariantSummary scans one summary row.
func scanVariantSummary(row pgx.Row) (project.AudioVariant, error) {
	var (
		v            project.AudioVariant
		settingsJSON []byte
	)
	err := row.Scan(
		&v.ID, &v.ChunkID, &v.VariantNumber, &v.Status, &v.Progress, &v.IsActive,
		&v.ErrorMessage, &v.UsedVoiceID, &settingsJSON, &v.HasAudio, &v.CreatedAt,
	)
	if err != nil {
		return project.AudioVariant{}, err
	}
	if err := json.Unmarshal(settingsJSON, &v.UsedSettings); err != nil {
		return project.AudioVariant{}, fmt.Errorf("project store: unmarshal used settings: %w", err)
	}
	return v, nil
}

// ListVariants implements [project.Store.ListVariants].
func (s *Store) ListVariants(ctx context.Context, chunkID string) ([]project.AudioVariant, error) {
	if _, err := s.GetChunk(ctx, chunkID); err != nil {
		return nil, err
	}

	query := `SELECT ` + variantSummaryColumns + `
		FROM audio_variants WHERE chunk_id = $1 ORDER BY variant_number`
	return s.queryVariants(ctx, query, chunkID)
}

// ListProjectVariants implements [project.Store.ListProjectVariants].
func (s *Store) ListProjectVariants(ctx context.Context, projectID string) ([]project.AudioVariant, error) {
	if err := s.projectExists(ctx, projectID); err != nil {
		return nil, err
	}

	query := `SELECT ` + variantSummaryColumns + `
		FROM audio_variants
		WHERE chunk_id IN (SELECT id FROM chunks WHERE project_id = $1)
		ORDER BY chunk_id, variant_number`
	return s.queryVariants(ctx, query, projectID)
}

func (s *Store) queryVariants(ctx context.Context, query string, args ...any) ([]project.AudioVariant, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("project store: list variants: %w", err)
	}
	defer rows.Close()

	var out []project.AudioVariant
	for rows.Next() {
		v, err := scanVariantSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("project store: list variants scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("project store: list variants: %w", err)
	}
	return out, nil
}

// GetVariant implements [project.Store.GetVariant].
func (s *Store) GetVariant(ctx context.Context, id string) (project.AudioVariant, error) {
	query := `SELECT ` + variantSummaryColumns + ` FROM audio_variants WHERE id = $1`
	v, err := scanVariantSummary(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.AudioVariant{}, project.ErrVariantNotFound
		}
		return project.AudioVariant{}, fmt.Errorf("project store: get variant %q: %w", id, err)
	}
	return v, nil
}

// GetVariantAudio implements [project.Store.GetVariantAudio].
func (s *Store) GetVariantAudio(ctx context.Context, id string) ([]byte, error) {
	const query = `SELECT audio_data FROM audio_variants WHERE id = $1`

	var audio []byte
	if err := s.db.QueryRow(ctx, query, id).Scan(&audio); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, project.ErrVariantNotFound
		}
		return nil, fmt.Errorf("project store: get variant audio %q: %w", id, err)
	}
	if len(audio) == 0 {
		return nil, project.ErrVariantNotReady
	}
	return audio, nil
}

// CreateVariant implements [project.Store.CreateVariant]. The chunk row is
// locked for the duration of the transaction, so the count read here is the
// count the inserted number is derived from even under concurrent calls.
func (s *Store) CreateVariant(ctx context.Context, chunkID, usedVoiceID string, usedSettings project.VoiceSettings, maxVariants int) (project.AudioVariant, error) {
	settingsJSON, err := json.Marshal(usedSettings)
	if err != nil {
		return project.AudioVariant{}, fmt.Errorf("project store: marshal used settings: %w", err)
	}
	id, err := project.NewID()
	if err != nil {
		return project.AudioVariant{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return project.AudioVariant{}, fmt.Errorf("project store: create variant: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var chunkExists string
	err = tx.QueryRow(ctx, `SELECT id FROM chunks WHERE id = $1 FOR UPDATE`, chunkID).Scan(&chunkExists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.AudioVariant{}, project.ErrChunkNotFound
		}
		return project.AudioVariant{}, fmt.Errorf("project store: create variant: lock chunk: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM audio_variants WHERE chunk_id = $1`, chunkID).Scan(&count); err != nil {
		return project.AudioVariant{}, fmt.Errorf("project store: create variant: count: %w", err)
	}
	if count >= maxVariants {
		return project.AudioVariant{}, project.ErrVariantLimit
	}

	v := project.AudioVariant{
		ID:            id,
		ChunkID:       chunkID,
		VariantNumber: count + 1,
		Status:        project.StatusProcessing,
		UsedVoiceID:   usedVoiceID,
		UsedSettings:  usedSettings,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO audio_variants (id, chunk_id, variant_number, status, progress, used_voice_id, used_voice_settings)
		VALUES ($1, $2, $3, 'processing', 0, $4, $5)
		RETURNING created_at`,
		id, chunkID, v.VariantNumber, usedVoiceID, settingsJSON,
	).Scan(&v.CreatedAt)
	if err != nil {
		return project.AudioVariant{}, fmt.Errorf("project store: create variant: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return project.AudioVariant{}, fmt.Errorf("project store: create variant: commit: %w", err)
	}
	return v, nil
}

// MarkVariantDone implements [project.Store.MarkVariantDone].
func (s *Store) MarkVariantDone(ctx context.Context, id string, audio []byte, activate bool) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("project store: mark variant done: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var chunkID string
	err = tx.QueryRow(ctx, `
		UPDATE audio_variants
		SET audio_data = $2, status = 'done', progress = 100, error_message = NULL
		WHERE id = $1
		RETURNING chunk_id`, id, audio).Scan(&chunkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.ErrVariantNotFound
		}
		return fmt.Errorf("project store: mark variant done: %w", err)
	}

	if activate {
		if _, err := tx.Exec(ctx,
			`UPDATE audio_variants SET is_active = (id = $2) WHERE chunk_id = $1`, chunkID, id); err != nil {
			return fmt.Errorf("project store: mark variant done: activate: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("project store: mark variant done: commit: %w", err)
	}
	return nil
}

// MarkVariantError implements [project.Store.MarkVariantError].
func (s *Store) MarkVariantError(ctx context.Context, id, message string) error {
	const query = `UPDATE audio_variants SET status = 'error', error_message = $2 WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("project store: mark variant error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return project.ErrVariantNotFound
	}
	return nil
}

// ActivateVariant implements [project.Store.ActivateVariant]. The target row
// is locked before the readiness check so concurrent activations on the same
// chunk serialize instead of leaving two active variants.
func (s *Store) ActivateVariant(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("project store: activate variant: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		chunkID  string
		status   project.VariantStatus
		hasAudio bool
	)
	err = tx.QueryRow(ctx, `
		SELECT chunk_id, status, (audio_data IS NOT NULL)
		FROM audio_variants WHERE id = $1 FOR UPDATE`, id,
	).Scan(&chunkID, &status, &hasAudio)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.ErrVariantNotFound
		}
		return fmt.Errorf("project store: activate variant: %w", err)
	}
	if status != project.StatusDone || !hasAudio {
		return project.ErrVariantNotReady
	}

	if _, err := tx.Exec(ctx,
		`UPDATE audio_variants SET is_active = (id = $2) WHERE chunk_id = $1`, chunkID, id); err != nil {
		return fmt.Errorf("project store: activate variant: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("project store: activate variant: commit: %w", err)
	}
	return nil
}

// DeleteVariant implements [project.Store.DeleteVariant]. Deletion,
// promotion of the lowest-numbered survivor, and renumbering all happen in
// one transaction with the chunk's variant rows locked.
func (s *Store) DeleteVariant(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("project store: delete variant: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		chunkID   string
		wasActive bool
	)
	err = tx.QueryRow(ctx,
		`DELETE FROM audio_variants WHERE id = $1 RETURNING chunk_id, is_active`, id,
	).Scan(&chunkID, &wasActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.ErrVariantNotFound
		}
		return fmt.Errorf("project store: delete variant: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id FROM audio_variants
		WHERE chunk_id = $1 ORDER BY variant_number FOR UPDATE`, chunkID)
	if err != nil {
		return fmt.Errorf("project store: delete variant: survivors: %w", err)
	}
	var survivors []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return fmt.Errorf("project store: delete variant: survivors scan: %w", err)
		}
		survivors = append(survivors, sid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("project store: delete variant: survivors: %w", err)
	}

	for i, sid := range survivors {
		active := wasActive && i == 0
		if active {
			if _, err := tx.Exec(ctx,
				`UPDATE audio_variants SET variant_number = $2, is_active = TRUE WHERE id = $1`, sid, i+1); err != nil {
				return fmt.Errorf("project store: delete variant: renumber: %w", err)
			}
			continue
		}
		if _, err := tx.Exec(ctx,
			`UPDATE audio_variants SET variant_number = $2 WHERE id = $1`, sid, i+1); err != nil {
			return fmt.Errorf("project store: delete variant: renumber: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("project store: delete variant: commit: %w", err)
	}
	return nil
}

// ListActiveVariants implements [project.Store.ListActiveVariants].
func (s *Store) ListActiveVariants(ctx context.Context, projectID string) ([]project.AudioVariant, error) {
	if err := s.projectExists(ctx, projectID); err != nil {
		return nil, err
	}

	const query = `
		SELECT v.id, v.chunk_id, v.variant_number, v.status, v.progress, v.is_active,
		       v.error_message, v.used_voice_id, v.used_voice_settings, v.audio_data, v.created_at
		FROM audio_variants v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE c.project_id = $1 AND v.is_active
		ORDER BY c.position`

	rows, err := s.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("project store: list active variants: %w", err)
	}
	defer rows.Close()

	var out []project.AudioVariant
	for rows.Next() {
		var (
			v            project.AudioVariant
			settingsJSON []byte
		)
		if err := rows.Scan(
			&v.ID, &v.ChunkID, &v.VariantNumber, &v.Status, &v.Progress, &v.IsActive,
			&v.ErrorMessage, &v.UsedVoiceID, &settingsJSON, &v.Audio, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("project store: list active variants scan: %w", err)
		}
		if err := json.Unmarshal(settingsJSON, &v.UsedSettings); err != nil {
			return nil, fmt.Errorf("project store: unmarshal used settings: %w", err)
		}
		v.HasAudio = len(v.Audio) > 0
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("project store: list active variants: %w", err)
	}
	return out, nil
}

// projectExists maps a missing project row to [project.ErrProjectNotFound].
func (s *Store) projectExists(ctx context.Context, id string) error {
	var found string
	err := s.db.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.ErrProjectNotFound
		}
		return fmt.Errorf("project store: get project %q: %w", id, err)
	}
	return nil
}

// marshalSettings serialises optional settings to JSONB, validating ranges
// first. A nil settings value stores SQL NULL.
func marshalSettings(s *project.VoiceSettings) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("project store: marshal settings: %w", err)
	}
	return b, nil
}

// unmarshalSettings deserialises an optional JSONB settings column.
func unmarshalSettings(b []byte) (*project.VoiceSettings, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s project.VoiceSettings
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("project store: unmarshal settings: %w", err)
	}
	return &s, nil
}
