// Package sqlite persists story documents and decision history in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/dotcommander/imaginator/internal/domain/story"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

//go:embed schema.sql
var schema string

// Store implements core.Store. A story, its characters, scenes and history
// share one lifetime: deleting the story cascades to the rest.
type Store struct {
	db *sql.DB
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes the whole document. Characters and scenes are replaced, so the
// stored copy always matches the document exactly. A story owned by someone
// else is reported as not found.
func (s *Store) Save(ctx context.Context, doc *story.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.ID == "" || doc.OwnerID == "" {
		return fmt.Errorf("story id and owner are required")
	}

	premise, err := json.Marshal(doc.Premise)
	if err != nil {
		return fmt.Errorf("encoding premise: %w", err)
	}
	structure, err := json.Marshal(doc.Structure)
	if err != nil {
		return fmt.Errorf("encoding structure: %w", err)
	}
	health, err := json.Marshal(doc.Health)
	if err != nil {
		return fmt.Errorf("encoding health: %w", err)
	}
	frameworks, err := json.Marshal(doc.Frameworks)
	if err != nil {
		return fmt.Errorf("encoding frameworks: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sq.Insert("stories").
		Columns("id", "owner_id", "title", "premise", "structure", "health", "frameworks", "created_at", "updated_at").
		Values(doc.ID, doc.OwnerID, doc.Title, string(premise), string(structure), string(health), string(frameworks),
			toNanos(doc.CreatedAt), toNanos(doc.UpdatedAt)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			premise = excluded.premise,
			structure = excluded.structure,
			health = excluded.health,
			frameworks = excluded.frameworks,
			updated_at = excluded.updated_at
			WHERE stories.owner_id = excluded.owner_id`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building story upsert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("saving story: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("saving story %s: %w", doc.ID, storyerrors.ErrNotFound)
	}

	if err := replaceCharacters(ctx, tx, doc); err != nil {
		return err
	}
	if err := replaceScenes(ctx, tx, doc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit story: %w", err)
	}
	return nil
}

type characterProfile struct {
	Physiology story.Physiology `json:"physiology"`
	Sociology  story.Sociology  `json:"sociology"`
	Psychology story.Psychology `json:"psychology"`
}

func replaceCharacters(ctx context.Context, tx *sql.Tx, doc *story.Document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM characters WHERE story_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clearing characters: %w", err)
	}
	if len(doc.Characters) == 0 {
		return nil
	}

	insert := sq.Insert("characters").Columns("story_id", "id", "seq", "name", "role", "premise", "profile")
	for i, c := range doc.Characters {
		profile, err := json.Marshal(characterProfile{Physiology: c.Physiology, Sociology: c.Sociology, Psychology: c.Psychology})
		if err != nil {
			return fmt.Errorf("encoding character %s: %w", c.ID, err)
		}
		insert = insert.Values(doc.ID, c.ID, i, c.Name, string(c.Role), c.Premise, string(profile))
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("building character insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving characters: %w", err)
	}
	return nil
}

type sceneDetails struct {
	FrameworkBeats        map[story.Framework]string `json:"framework_beats"`
	CharacterDevelopments map[string]string          `json:"character_developments"`
	Perspectives          story.Perspectives         `json:"perspectives"`
}

func replaceScenes(ctx context.Context, tx *sql.Tx, doc *story.Document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE story_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clearing scenes: %w", err)
	}
	if len(doc.Scenes) == 0 {
		return nil
	}

	insert := sq.Insert("scenes").
		Columns("story_id", "id", "position", "title", "content", "premise_advancement", "conflict_level", "details")
	for _, sc := range doc.Scenes {
		details, err := json.Marshal(sceneDetails{
			FrameworkBeats:        sc.FrameworkBeats,
			CharacterDevelopments: sc.CharacterDevelopments,
			Perspectives:          sc.Perspectives,
		})
		if err != nil {
			return fmt.Errorf("encoding scene %s: %w", sc.ID, err)
		}
		insert = insert.Values(doc.ID, sc.ID, sc.Position, sc.Title, sc.Content, sc.PremiseAdvancement, sc.ConflictLevel, string(details))
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("building scene insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving scenes: %w", err)
	}
	return nil
}

var storyColumns = []string{"id", "owner_id", "title", "premise", "structure", "health", "frameworks", "created_at", "updated_at"}

// Load returns the full document, or ErrNotFound when it is absent or owned by someone else
func (s *Store) Load(ctx context.Context, id, ownerID string) (*story.Document, error) {
	query, args, err := sq.Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building story query: %w", err)
	}

	doc, err := scanStory(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading story %s: %w", id, storyerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if doc.Characters, err = s.loadCharacters(ctx, id); err != nil {
		return nil, err
	}
	if doc.Scenes, err = s.loadScenes(ctx, id); err != nil {
		return nil, err
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*story.Document, error) {
	var (
		doc                                     story.Document
		premise, structure, health, frameworks string
		createdAt, updatedAt                   int64
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &premise, &structure, &health, &frameworks, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(premise), &doc.Premise); err != nil {
		return nil, fmt.Errorf("decoding premise of %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal([]byte(structure), &doc.Structure); err != nil {
		return nil, fmt.Errorf("decoding structure of %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal([]byte(health), &doc.Health); err != nil {
		return nil, fmt.Errorf("decoding health of %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal([]byte(frameworks), &doc.Frameworks); err != nil {
		return nil, fmt.Errorf("decoding frameworks of %s: %w", doc.ID, err)
	}
	doc.CreatedAt = fromNanos(createdAt)
	doc.UpdatedAt = fromNanos(updatedAt)
	doc.Characters = []story.Character{}
	doc.Scenes = []story.Scene{}
	return &doc, nil
}

func (s *Store) loadCharacters(ctx context.Context, storyID string) ([]story.Character, error) {
	query, args, err := sq.Select("id", "name", "role", "premise", "profile").
		From("characters").
		Where(sq.Eq{"story_id": storyID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building character query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading characters: %w", err)
	}
	defer rows.Close()

	characters := []story.Character{}
	for rows.Next() {
		var (
			c       story.Character
			role    string
			profile string
		)
		if err := rows.Scan(&c.ID, &c.Name, &role, &c.Premise, &profile); err != nil {
			return nil, fmt.Errorf("scanning character: %w", err)
		}
		var p characterProfile
		if err := json.Unmarshal([]byte(profile), &p); err != nil {
			return nil, fmt.Errorf("decoding character %s: %w", c.ID, err)
		}
		c.Role = story.Role(role)
		c.Physiology, c.Sociology, c.Psychology = p.Physiology, p.Sociology, p.Psychology
		characters = append(characters, c)
	}
	return characters, rows.Err()
}

func (s *Store) loadScenes(ctx context.Context, storyID string) ([]story.Scene, error) {
	query, args, err := sq.Select("id", "position", "title", "content", "premise_advancement", "conflict_level", "details").
		From("scenes").
		Where(sq.Eq{"story_id": storyID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building scene query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading scenes: %w", err)
	}
	defer rows.Close()

	scenes := []story.Scene{}
	for rows.Next() {
		var (
			sc      story.Scene
			details string
		)
		if err := rows.Scan(&sc.ID, &sc.Position, &sc.Title, &sc.Content, &sc.PremiseAdvancement, &sc.ConflictLevel, &details); err != nil {
			return nil, fmt.Errorf("scanning scene: %w", err)
		}
		var d sceneDetails
		if err := json.Unmarshal([]byte(details), &d); err != nil {
			return nil, fmt.Errorf("decoding scene %s: %w", sc.ID, err)
		}
		sc.FrameworkBeats = d.FrameworkBeats
		sc.CharacterDevelopments = d.CharacterDevelopments
		sc.Perspectives = d.Perspectives
		if sc.FrameworkBeats == nil {
			sc.FrameworkBeats = map[story.Framework]string{}
		}
		if sc.CharacterDevelopments == nil {
			sc.CharacterDevelopments = map[string]string{}
		}
		scenes = append(scenes, sc)
	}
	return scenes, rows.Err()
}

// ListByOwner returns summaries (no characters or scenes), most recently updated first
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*story.Document, error) {
	query, args, err := sq.Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("updated_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	defer rows.Close()

	docs := []*story.Document{}
	for rows.Next() {
		doc, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning story: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes a story and, through the foreign keys, everything it owns
func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	query, args, err := sq.Delete("stories").
		Where(sq.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting story: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting story: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deleting story %s: %w", id, storyerrors.ErrNotFound)
	}
	return nil
}

func (s *Store) AppendDecisionHistory(ctx context.Context, rec story.DecisionRecord) error {
	impact, err := json.Marshal(rec.Impact)
	if err != nil {
		return fmt.Errorf("encoding impact: %w", err)
	}
	query, args, err := sq.Insert("decision_history").
		Columns("id", "story_id", "owner_id", "decision_type", "context", "option_id", "option_title", "option_description", "impact", "created_at").
		Values(rec.ID, rec.StoryID, rec.OwnerID, string(rec.Type), rec.Context, rec.OptionID, rec.OptionTitle, rec.OptionDescription,
			string(impact), toNanos(rec.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building history insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("appending decision history: %w", err)
	}
	return nil
}

// ListDecisionHistory returns a story's records oldest first. An unknown or
// foreign story is reported as not found.
func (s *Store) ListDecisionHistory(ctx context.Context, storyID, ownerID string) ([]story.DecisionRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM stories WHERE id = ? AND owner_id = ?`, storyID, ownerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history of story %s: %w", storyID, storyerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking story: %w", err)
	}

	query, args, err := sq.Select("id", "story_id", "owner_id", "decision_type", "context", "option_id", "option_title", "option_description", "impact", "created_at").
		From("decision_history").
		Where(sq.Eq{"story_id": storyID, "owner_id": ownerID}).
		OrderBy("created_at", "rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing decision history: %w", err)
	}
	defer rows.Close()

	records := []story.DecisionRecord{}
	for rows.Next() {
		var (
			rec       story.DecisionRecord
			typ       string
			impact    string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.StoryID, &rec.OwnerID, &typ, &rec.Context, &rec.OptionID, &rec.OptionTitle,
			&rec.OptionDescription, &impact, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning decision record: %w", err)
		}
		if err := json.Unmarshal([]byte(impact), &rec.Impact); err != nil {
			return nil, fmt.Errorf("decoding impact of %s: %w", rec.ID, err)
		}
		rec.Type = story.DecisionType(typ)
		rec.CreatedAt = fromNanos(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
