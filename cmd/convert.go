package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"firestige.xyz/netreplay/internal/convert"
)

var convertLayout string

var convertCmd = &cobra.Command{
	Use:   "convert <input-file|input-dir> [output-file|output-dir]",
	Short: "Convert binary response logs to JSON",
	Long: `
Convert one binary response log, or every *.net file in a directory, into the
JSON document form.

Examples:
  netreplay convert evping-4.net                  # writes evping-4.json
  netreplay convert evping-4.net out.json
  netreplay convert testsuite-data/ testsuite-json/
`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		layoutName := convertLayout
		if layoutName == "" {
			layoutName = cfg.Convert.Layout
		}
		layout, err := layoutFromName(layoutName)
		if err != nil {
			exitWithError("invalid layout", err)
		}

		outPath := ""
		if len(args) == 2 {
			outPath = args[1]
		}

		c := convert.New(layout, logrus.StandardLogger())
		if err := c.Run(args[0], outPath); err != nil {
			exitWithError("conversion failed", err)
		}
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertLayout, "layout", "l", "",
		"producer layout: linux-le-64 or linux-le-32 (default from config)")
	rootCmd.AddCommand(convertCmd)
}
