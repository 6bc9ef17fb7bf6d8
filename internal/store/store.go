// Package store persists saved research projects in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS research_projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	product_concept TEXT NOT NULL,
	target_segment TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS research_questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES research_projects(id),
	position INTEGER NOT NULL,
	question_text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS personas (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES research_projects(id),
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	age INTEGER,
	occupation TEXT,
	background TEXT,
	interests TEXT,
	media_consumption TEXT,
	"values" TEXT,
	spending_habits TEXT,
	pain_points TEXT,
	communication_style TEXT
);

CREATE TABLE IF NOT EXISTS transcripts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES research_projects(id),
	created_at INTEGER NOT NULL,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES research_projects(id),
	created_at INTEGER NOT NULL,
	emotional_tone TEXT,
	emotional_summary TEXT,
	themes TEXT,
	theme_details TEXT,
	objections TEXT,
	praise TEXT,
	pricing TEXT,
	participant_alignment TEXT,
	summary TEXT,
	recommendations TEXT,
	lexicon_sentiment TEXT
);

CREATE INDEX IF NOT EXISTS idx_projects_created ON research_projects(created_at);
CREATE INDEX IF NOT EXISTS idx_questions_project ON research_questions(project_id);
CREATE INDEX IF NOT EXISTS idx_personas_project ON personas(project_id);
CREATE INDEX IF NOT EXISTS idx_transcripts_project ON transcripts(project_id);
CREATE INDEX IF NOT EXISTS idx_analyses_project ON analyses(project_id);
`

// childTables are removed before their parent project row.
var childTables = []string{"research_questions", "personas", "transcripts", "analyses"}

// Store provides read-write access to the projects database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores p as a new project and returns its generated id. p.ID is
// ignored; a zero p.CreatedAt is set to the current time.
func (s *Store) Save(ctx context.Context, p models.Project) (string, error) {
	if strings.TrimSpace(p.Name) == "" {
		return "", errors.New("save project: name is required")
	}
	id := uuid.NewString()
	created := p.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	ts := created.UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO research_projects (id, name, created_at, product_concept, target_segment)
		VALUES (?, ?, ?, ?, ?)
	`, id, p.Name, ts, p.Concept, p.Segment); err != nil {
		return "", fmt.Errorf("insert project: %w", err)
	}

	for i, q := range p.Questions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO research_questions (project_id, position, question_text) VALUES (?, ?, ?)
		`, id, i, q); err != nil {
			return "", fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	for i, pe := range p.Personas {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO personas (project_id, position, name, age, occupation, background, interests,
				media_consumption, "values", spending_habits, pain_points, communication_style)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, pe.Name, pe.Age, pe.Occupation, pe.Background, pe.Interests,
			pe.MediaHabits, pe.Values, pe.SpendingHabits, pe.PainPoints, pe.CommunicationStyle); err != nil {
			return "", fmt.Errorf("insert persona %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transcripts (project_id, created_at, content) VALUES (?, ?, ?)
	`, id, ts, p.Transcript); err != nil {
		return "", fmt.Errorf("insert transcript: %w", err)
	}

	if p.Analysis != nil {
		if err := insertAnalysis(ctx, tx, id, ts, p.Analysis); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return id, nil
}

func insertAnalysis(ctx context.Context, tx *sql.Tx, id string, ts int64, a *models.AnalysisReport) error {
	cols := []any{a.EmotionalTone, a.Themes, a.ThemeDetails, a.Objections, a.Praise, a.Pricing, a.ParticipantAlignment, a.Recommendations, a.LexiconSentiment}
	enc := make([]any, len(cols))
	for i, c := range cols {
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode analysis: %w", err)
		}
		enc[i] = string(b)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO analyses (project_id, created_at, emotional_tone, emotional_summary, themes, theme_details,
			objections, praise, pricing, participant_alignment, summary, recommendations, lexicon_sentiment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, ts, enc[0], a.EmotionalSummary, enc[1], enc[2], enc[3], enc[4], enc[5], enc[6], a.Summary, enc[7], enc[8])
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// List returns every project, newest first.
func (s *Store) List(ctx context.Context) ([]models.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, product_concept, target_segment
		FROM research_projects
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []models.ProjectSummary{}
	for rows.Next() {
		var p models.ProjectSummary
		var created int64
		if err := rows.Scan(&p.ID, &p.Name, &created, &p.Concept, &p.Segment); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = timeFromUnixNano(created)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Get returns the full project with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, product_concept, target_segment
		FROM research_projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &created, &p.Concept, &p.Segment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.CreatedAt = timeFromUnixNano(created)

	if p.Questions, err = s.questions(ctx, id); err != nil {
		return nil, err
	}
	if p.Personas, err = s.personas(ctx, id); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT content FROM transcripts WHERE project_id = ? ORDER BY id DESC LIMIT 1
	`, id).Scan(&p.Transcript)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	if p.Analysis, err = s.analysis(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) questions(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_text FROM research_questions WHERE project_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := []string{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) personas(ctx context.Context, id string) ([]models.Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, age, occupation, background, interests, media_consumption, "values",
			spending_habits, pain_points, communication_style
		FROM personas WHERE project_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	personas := []models.Persona{}
	for rows.Next() {
		var p models.Persona
		var age sql.NullInt64
		var occupation, background, interests, media, values, spending, pain, style sql.NullString
		if err := rows.Scan(&p.Name, &age, &occupation, &background, &interests, &media,
			&values, &spending, &pain, &style); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		p.Age = int(age.Int64)
		p.Occupation = occupation.String
		p.Background = background.String
		p.Interests = interests.String
		p.MediaHabits = media.String
		p.Values = values.String
		p.SpendingHabits = spending.String
		p.PainPoints = pain.String
		p.CommunicationStyle = style.String
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func (s *Store) analysis(ctx context.Context, id string) (*models.AnalysisReport, error) {
	var a models.AnalysisReport
	var tone, emotional, themes, details, objections, praise sql.NullString
	var pricing, alignment, summary, recommendations, lexicon sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT emotional_tone, emotional_summary, themes, theme_details, objections, praise,
			pricing, participant_alignment, summary, recommendations, lexicon_sentiment
		FROM analyses WHERE project_id = ? ORDER BY id DESC LIMIT 1
	`, id).Scan(&tone, &emotional, &themes, &details, &objections, &praise,
		&pricing, &alignment, &summary, &recommendations, &lexicon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	a.EmotionalSummary = emotional.String
	a.Summary = summary.String
	fields := []struct {
		col  sql.NullString
		dest any
	}{
		{tone, &a.EmotionalTone},
		{themes, &a.Themes},
		{details, &a.ThemeDetails},
		{objections, &a.Objections},
		{praise, &a.Praise},
		{pricing, &a.Pricing},
		{alignment, &a.ParticipantAlignment},
		{recommendations, &a.Recommendations},
		{lexicon, &a.LexiconSentiment},
	}
	for _, f := range fields {
		if !f.col.Valid || f.col.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.col.String), f.dest); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return &a, nil
}

// Delete removes a project and its child rows. It reports false when no
// project has that id.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE project_id = ?", id); err != nil {
			return false, fmt.Errorf("delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM research_projects WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return n > 0, nil
}

func timeFromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
