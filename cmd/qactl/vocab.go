package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/postgres"
)

var (
	vocabBuild bool
	vocabShow  int
)

func init() {
	vocabCmd.Flags().BoolVar(&vocabBuild, "build", false, "build from the corpus database when no cached vocabulary exists")
	vocabCmd.Flags().IntVar(&vocabShow, "show", 0, "print the first N tokens with their document frequency")
}

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Load (or build) the vocabulary and print its statistics",
	Long: `Load the vocabulary cached under the configured prefix and print its
statistics. With --build, a missing vocabulary is built from the corpus
database and saved.

Examples:
  qactl vocab
  qactl vocab --build --show 20`,
	Args: cobra.NoArgs,
	RunE: runVocab,
}

func runVocab(cmd *cobra.Command, _ []string) error {
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

	var src corpus.Source
	if vocabBuild {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		src = corpus.NewPostgresSource(pg.DB)
	}

	v, err := vocabulary.BuildOrLoad(ctx, src, store, vocabulary.Options{
		Prefix:    cfg.Vocabulary.Prefix,
		BatchSize: cfg.Corpus.BatchSize,
		MaxTokens: cfg.Vocabulary.MaxTokens,
		LogEvery:  cfg.Corpus.LogEvery,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fp := v.Fingerprint()
	fmt.Fprintf(out, "prefix:      %q\n", v.Prefix())
	fmt.Fprintf(out, "tokens:      %d (unknown id %d, pad id %d)\n", v.Size(), v.UnknownTokenID(), v.PadID())
	fmt.Fprintf(out, "categories:  %d (unknown id %d)\n", v.NumCategories(), v.UnknownCategoryID())
	fmt.Fprintf(out, "documents:   %d\n", v.NumDocs())
	fmt.Fprintf(out, "built from:  %d questions, %d answers\n", fp.Questions, fp.Answers)
	for id := 0; id < vocabShow && id < v.Size(); id++ {
		fmt.Fprintf(out, "%8d  %-24s df=%d\n", id, v.IDToToken(id), v.DocFreq(id))
	}
	return nil
}
