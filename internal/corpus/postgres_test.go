package corpus

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

func newSourceWithMock(t *testing.T) (*PostgresSource, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewPostgresSource(db), mock, func() { _ = db.Close() }
}

func TestPostgresCount(t *testing.T) {
	src, mock, done := newSourceWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM question`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM answer`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	fp, err := TakeFingerprint(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint{Questions: 3, Answers: 7}, fp)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountUnavailable(t *testing.T) {
	src, mock, done := newSourceWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM answer`).
		WillReturnError(errors.New(`pq: relation "answer" does not exist`))

	_, err := src.Count(context.Background(), KindAnswer)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingCorpus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIterateQuestionsPaginates(t *testing.T) {
	src, mock, done := newSourceWithMock(t)
	defer done()

	cols := []string{"id", "title", "content", "text"}
	mock.ExpectQuery("SELECT q.id, q.title, q.content, c.text").
		WithArgs(int64(0), 2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), "Why is the sky blue", "asking for a friend", "Science").
			AddRow(int64(2), "Best pizza in town", nil, nil))
	mock.ExpectQuery("SELECT q.id, q.title, q.content, c.text").
		WithArgs(int64(2), 2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(5), "How to tie a tie", nil, "Fashion"))

	var got []Question
	var batches int
	err := src.IterateQuestions(context.Background(), 2, func(batch []Question) error {
		batches++
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, batches)
	require.Len(t, got, 3)
	require.NotNil(t, got[0].Content)
	assert.Equal(t, "asking for a friend", *got[0].Content)
	assert.Nil(t, got[1].Content)
	assert.Nil(t, got[1].Category)
	require.NotNil(t, got[2].Category)
	assert.Equal(t, "Fashion", *got[2].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIterateAnswersJoinsQuestion(t *testing.T) {
	src, mock, done := newSourceWithMock(t)
	defer done()

	cols := []string{"id", "content", "is_best", "question_id", "title", "content", "text"}
	mock.ExpectQuery("SELECT a.id, a.content, a.is_best").
		WithArgs(int64(0), 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(11), "Rayleigh scattering", true, int64(1), "Why is the sky blue", nil, "Science"))

	var got []Answer
	err := src.IterateAnswers(context.Background(), 10, func(batch []Answer) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsBest)
	require.NotNil(t, got[0].Question)
	assert.Equal(t, int64(1), got[0].Question.ID)
	assert.Equal(t, "Why is the sky blue", got[0].Question.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIterateStopsOnCallbackError(t *testing.T) {
	src, mock, done := newSourceWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT q.id").
		WithArgs(int64(0), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "text"}).
			AddRow(int64(1), "t", nil, nil))

	stop := errors.New("stop")
	err := src.IterateQuestions(context.Background(), 1, func([]Question) error { return stop })
	assert.ErrorIs(t, err, stop)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemorySourceBatches(t *testing.T) {
	src := NewMemorySource(
		[]Question{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}, {ID: 3, Title: "c"}},
		[]Answer{{ID: 10, Content: "x", QuestionID: 2}},
	)
	var sizes []int
	require.NoError(t, src.IterateQuestions(context.Background(), 2, func(b []Question) error {
		sizes = append(sizes, len(b))
		return nil
	}))
	assert.Equal(t, []int{2, 1}, sizes)

	require.NoError(t, src.IterateAnswers(context.Background(), 5, func(b []Answer) error {
		require.NotNil(t, b[0].Question)
		assert.Equal(t, "b", b[0].Question.Title)
		return nil
	}))

	err := src.IterateAnswers(context.Background(), 0, func([]Answer) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
