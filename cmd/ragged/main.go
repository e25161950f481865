// Package main provides the ragged CLI.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/comfforts/logger"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ragged-ml/ragged/batch"
	"github.com/ragged-ml/ragged/internal/tokenizer"
	"github.com/ragged-ml/ragged/tensor"
)

const version = "v0.1.0-dev"

var defaultSentences = []string{
	"the cat sat",
	"a much longer sentence that pads the batch out",
	"hi",
}

func main() {
	root := &cobra.Command{
		Use:   "ragged",
		Short: "Masked batch engine for variable-length numeric data",
	}
	root.AddCommand(versionCmd(), demoCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ragged %s\n", version)
		},
	}
}

func demoCmd() *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "demo [sentence]...",
		Short: "Tokenize sentences and run them through the masked batch engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			sentences := args
			if len(sentences) == 0 {
				sentences = defaultSentences
			}
			return runDemo(sentences, encoding)
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", tokenizer.DefaultEncoding, "tiktoken encoding name")
	return cmd
}

// runDemo pads a tokenized batch, recovers the true lengths from the
// mask, and shows that masked sums match each sentence's own tokens
// regardless of padding.
func runDemo(sentences []string, encoding string) error {
	l := logger.GetSlogLogger()

	tok, err := tokenizer.NewTikToken(encoding)
	if err != nil {
		return err
	}
	rows := tok.EncodeBatch(sentences)

	b, err := batch.PadSequences(rows)
	if err != nil {
		return err
	}
	l.Info("padded batch", "batch-size", b.BatchSize(), "padded-length", b.MaxSize(1))

	lengths, err := batch.Lengths(b, 1)
	if err != nil {
		return err
	}
	floats, err := batch.Cast(b, tensor.Float64)
	if err != nil {
		return err
	}
	sums, err := batch.Sum(floats, 1, false)
	if err != nil {
		return err
	}

	lengthData := batch.TensorOf(lengths)
	sumData := batch.TensorOf(sums)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"SENTENCE", "TOKENS", "PADDED", "SUM OF IDS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	for i, sentence := range sentences {
		table.Append([]string{
			sentence,
			strconv.Itoa(int(lengthData.Float(i))),
			strconv.Itoa(b.MaxSize(1)),
			strconv.FormatFloat(sumData.Float(i), 'f', 0, 64),
		})
	}
	table.Render()

	// A mean over the ragged axis must refuse to average padding in.
	if _, err := batch.Mean(floats, 1, false); err != nil {
		l.Info("mean over the ragged axis correctly rejected", "reason", err.Error())
	}
	return nil
}
