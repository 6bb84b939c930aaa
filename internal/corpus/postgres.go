package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

// Schema is the relational layout the corpus is stored in. Column widths
// follow the source dataset's field limits.
const Schema = `
CREATE TABLE IF NOT EXISTS category (
	id   SERIAL PRIMARY KEY,
	text VARCHAR(100) NOT NULL
);

CREATE TABLE IF NOT EXISTS question (
	id                   SERIAL PRIMARY KEY,
	title                VARCHAR(140) NOT NULL,
	content              VARCHAR(1500),
	category_id          INTEGER REFERENCES category(id),
	date                 DATE,
	res_date             DATE,
	vot_date             DATE,
	yahoo_id             VARCHAR(20),
	best_answer_yahoo_id VARCHAR(20)
);

CREATE TABLE IF NOT EXISTS answer (
	id          SERIAL PRIMARY KEY,
	content     VARCHAR(10000),
	is_best     BOOLEAN NOT NULL DEFAULT FALSE,
	question_id INTEGER NOT NULL REFERENCES question(id)
);

CREATE INDEX IF NOT EXISTS answer_question_id_idx ON answer (question_id);
`

const (
	countQuestionsQuery = `SELECT COUNT(*) FROM question`
	countAnswersQuery   = `SELECT COUNT(*) FROM answer`

	questionsPageQuery = `SELECT q.id, q.title, q.content, c.text
FROM question q
LEFT JOIN category c ON c.id = q.category_id
WHERE q.id > $1
ORDER BY q.id
LIMIT $2`

	answersPageQuery = `SELECT a.id, a.content, a.is_best, a.question_id, q.title, q.content, c.text
FROM answer a
JOIN question q ON q.id = a.question_id
LEFT JOIN category c ON c.id = q.category_id
WHERE a.id > $1
ORDER BY a.id
LIMIT $2`
)

// PostgresSource reads the corpus with keyset pagination, so each batch is
// one bounded query and iteration can be restarted at any time.
type PostgresSource struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSource wraps an open database handle (typically
// postgres.Client.DB).
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "corpus-postgres"),
	}
}

func (s *PostgresSource) Count(ctx context.Context, kind Kind) (int, error) {
	var query string
	switch kind {
	case KindQuestion:
		query = countQuestionsQuery
	case KindAnswer:
		query = countAnswersQuery
	default:
		return 0, fmt.Errorf("counting %s: %w", kind, apperrors.ErrInvalidArgument)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %ss: %w: %w", kind, apperrors.ErrMissingCorpus, err)
	}
	return n, nil
}

func (s *PostgresSource) IterateQuestions(ctx context.Context, batchSize int, fn func([]Question) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size %d: %w", batchSize, apperrors.ErrInvalidArgument)
	}
	var lastID int64
	for {
		batch, err := s.questionPage(ctx, lastID, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		lastID = batch[len(batch)-1].ID
	}
}

func (s *PostgresSource) IterateAnswers(ctx context.Context, batchSize int, fn func([]Answer) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size %d: %w", batchSize, apperrors.ErrInvalidArgument)
	}
	var lastID int64
	for {
		batch, err := s.answerPage(ctx, lastID, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		lastID = batch[len(batch)-1].ID
	}
}

func (s *PostgresSource) questionPage(ctx context.Context, afterID int64, limit int) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, questionsPageQuery, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying questions after %d: %w: %w", afterID, apperrors.ErrMissingCorpus, err)
	}
	defer rows.Close()

	batch := make([]Question, 0, limit)
	for rows.Next() {
		var (
			q        Question
			content  sql.NullString
			category sql.NullString
		)
		if err := rows.Scan(&q.ID, &q.Title, &content, &category); err != nil {
			return nil, fmt.Errorf("scanning question row: %w", err)
		}
		q.Content = nullable(content)
		q.Category = nullable(category)
		batch = append(batch, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating question rows: %w", err)
	}
	s.logger.Debug("question batch read", "after_id", afterID, "rows", len(batch))
	return batch, nil
}

func (s *PostgresSource) answerPage(ctx context.Context, afterID int64, limit int) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, answersPageQuery, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying answers after %d: %w: %w", afterID, apperrors.ErrMissingCorpus, err)
	}
	defer rows.Close()

	batch := make([]Answer, 0, limit)
	for rows.Next() {
		var (
			a               Answer
			q               Question
			content         sql.NullString
			questionContent sql.NullString
			category        sql.NullString
		)
		if err := rows.Scan(&a.ID, &content, &a.IsBest, &a.QuestionID, &q.Title, &questionContent, &category); err != nil {
			return nil, fmt.Errorf("scanning answer row: %w", err)
		}
		a.Content = content.String
		q.ID = a.QuestionID
		q.Content = nullable(questionContent)
		q.Category = nullable(category)
		a.Question = &q
		batch = append(batch, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating answer rows: %w", err)
	}
	s.logger.Debug("answer batch read", "after_id", afterID, "rows", len(batch))
	return batch, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
