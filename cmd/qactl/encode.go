package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/vocabulary"
)

var (
	encodeLength  int
	encodePadding string
)

func init() {
	encodeCmd.Flags().IntVar(&encodeLength, "length", 16, "fixed sequence length")
	encodeCmd.Flags().StringVar(&encodePadding, "padding", "post", "padding side: pre or post")
}

var encodeCmd = &cobra.Command{
	Use:   "encode TEXT...",
	Short: "Print the bag of tokens and padded sequence for text",
	Long: `Encode text with the cached vocabulary and print the result as JSON.

Examples:
  qactl encode "why is the sky blue"
  qactl encode --length 8 --padding pre "cheap flights to paris"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

type encodeOutput struct {
	Text     string      `json:"text"`
	Tokens   []string    `json:"tokens"`
	Bag      encoder.Bag `json:"bag"`
	Sequence []int       `json:"sequence"`
}

func runEncode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	v, err := vocabulary.Load(store, cfg.Vocabulary.Prefix)
	if err != nil {
		return err
	}
	enc := encoder.New(v)
	text := strings.Join(args, " ")

	ids := enc.IDs(&text)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = v.IDToToken(id)
	}
	result := encodeOutput{
		Text:     text,
		Tokens:   tokens,
		Bag:      encoder.BagOf(ids),
		Sequence: encoder.Pad(ids, encodeLength, v.PadID(), encoder.ParsePadding(encodePadding)),
	}
	e := json.NewEncoder(cmd.OutOrStdout())
	e.SetIndent("", "  ")
	return e.Encode(result)
}
