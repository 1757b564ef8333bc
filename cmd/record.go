package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"firestige.xyz/netreplay/internal/probe"
	"firestige.xyz/netreplay/pkg/response"
)

var (
	recordOutput   string
	recordCount    int
	recordInterval time.Duration
	recordTimeout  time.Duration
	recordIPv6     bool
)

var recordCmd = &cobra.Command{
	Use:   "record <target>",
	Short: "Probe a target and capture its response log",
	Long: `
Send ICMP echo requests to a target and capture the resulting response
events (destination address, socket name, timestamps, received TTLs,
reply packets, timeouts) into a binary .net log for later replay.

Examples:
  netreplay record example.org
  netreplay record -o probe.net -n 5 -6 2001:db8::1
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := args[0]
		out := recordOutput
		if out == "" {
			out = target + ".net"
		}

		f, err := os.Create(out)
		if err != nil {
			exitWithError("cannot create output file", err)
		}
		defer f.Close()

		pcfg := probe.Config{
			Target:   target,
			Count:    recordCount,
			Interval: recordInterval,
			Timeout:  recordTimeout,
			IPv6:     recordIPv6,
			Tool:     cfg.Probe.Tool,
		}
		if pcfg.Count == 0 {
			pcfg.Count = cfg.Probe.Count
		}
		if pcfg.Interval == 0 {
			pcfg.Interval = time.Duration(cfg.Probe.IntervalMS) * time.Millisecond
		}
		if pcfg.Timeout == 0 {
			pcfg.Timeout = time.Duration(cfg.Probe.TimeoutMS) * time.Millisecond
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w := response.NewWriter(f, response.WithLayout(response.DefaultLayout))
		p := probe.New(pcfg, w, response.DefaultLayout, logrus.StandardLogger())
		if err := p.Run(ctx); err != nil {
			exitWithError("recording failed", err)
		}
		logrus.WithField("output", out).Info("capture written")
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "output log path (default <target>.net)")
	recordCmd.Flags().IntVarP(&recordCount, "count", "n", 0, "number of echo requests (default from config)")
	recordCmd.Flags().DurationVarP(&recordInterval, "interval", "i", 0, "delay between requests")
	recordCmd.Flags().DurationVarP(&recordTimeout, "timeout", "t", 0, "per-request reply timeout")
	recordCmd.Flags().BoolVarP(&recordIPv6, "ipv6", "6", false, "probe over IPv6")
	rootCmd.AddCommand(recordCmd)
}
