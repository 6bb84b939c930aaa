package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/postgres"
)

var trainingLimit int

func init() {
	trainingCmd.Flags().IntVar(&trainingLimit, "limit", -1, "maximum number of answers (negative for all)")
}

var trainingCmd = &cobra.Command{
	Use:   "training",
	Short: "Export fixed-length training sequences as JSON lines",
	Long: `Stream answers from the corpus database and write one JSON object per
answer: the answer id, the padded answer and question sequences and the
question category id. Lengths and padding come from the encoding config.

Examples:
  qactl training --limit 1000 > train.jsonl`,
	Args: cobra.NoArgs,
	RunE: runTraining,
}

type trainingRow struct {
	AnswerID int64 `json:"answer_id"`
	Answer   []int `json:"answer"`
	Question []int `json:"question"`
	Category int   `json:"category"`
}

func runTraining(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	v, err := vocabulary.Load(store, cfg.Vocabulary.Prefix)
	if err != nil {
		return err
	}
	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	set, err := encoder.New(v).TrainingSet(ctx, corpus.NewPostgresSource(pg.DB), cfg.Corpus.BatchSize,
		encoder.Lengths{Question: cfg.Encoding.QuestionLength, Answer: cfg.Encoding.AnswerLength},
		encoder.ParsePadding(cfg.Encoding.Padding), trainingLimit)
	if err != nil {
		return err
	}

	e := json.NewEncoder(cmd.OutOrStdout())
	for i := 0; i < set.Len(); i++ {
		if err := e.Encode(trainingRow{
			AnswerID: set.AnswerIDs[i],
			Answer:   set.Answers[i],
			Question: set.Questions[i],
			Category: set.Categories[i],
		}); err != nil {
			return err
		}
	}
	return nil
}
