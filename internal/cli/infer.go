package cli

import (
	"github.com/spf13/cobra"

	"bfx-lending-bot/internal/app"
)

var inferDepth int

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Fetch the public funding book once and print the inferred best ask rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Infer(cmd.Context(), app.InferOptions{Depth: inferDepth})
	},
}

func init() {
	inferCmd.Flags().IntVar(&inferDepth, "depth", 5, "Number of top ask levels to print")
}
