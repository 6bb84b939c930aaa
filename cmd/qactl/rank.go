package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/pipeline"
)

var rankN int

func init() {
	rankCmd.Flags().IntVarP(&rankN, "limit", "n", -1, "number of documents (default search.defaultLimit)")
}

var rankCmd = &cobra.Command{
	Use:   "rank QUERY...",
	Short: "Run one ranked query against the cached experts",
	Long: `Load the vocabulary and every configured expert from the cache store
and print the merged ranking for QUERY. Nothing is built.

Examples:
  qactl rank "how do magnets work"
  qactl rank -n 3 "best pizza downtown"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	res, err := pipeline.Load(cmd.Context(), cfg, store, nil)
	if err != nil {
		return err
	}
	n := rankN
	if n < 0 {
		n = cfg.Search.DefaultLimit
	}
	query := strings.Join(args, " ")
	ranked, err := res.Ranker.RankScored(cmd.Context(), query, n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "query: %q  experts: %s  k=%d\n", query, strings.Join(res.Ranker.Experts(), ","), res.Ranker.K())
	for i, r := range ranked {
		fmt.Fprintf(out, "%3d  doc %-10d score %.4f\n", i+1, r.DocID, r.Score)
	}
	return nil
}
