package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "earnings-call-engine",
	Short: "Earnings call transcript ingestion, retrieval and report synthesis",
	Long: `earnings-call-engine ingests earnings-call transcripts, embeds them into pgvector
and generates evidence-cited quarter comparison reports. Run one of the binaries
under cmd/: api-service, embedding-worker or migrate.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}
