package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/netreplay/pkg/response"
)

var inspectLayout string

var inspectCmd = &cobra.Command{
	Use:   "inspect <log-file>",
	Short: "Dump a response log record by record",
	Long: `
Dump a response log in human-readable form. The decode path (binary or JSON)
is auto-detected. Packet payloads are decoded into protocol summaries.

Examples:
  netreplay inspect evping-4.net
  netreplay inspect evping-4.json
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		layoutName := inspectLayout
		if layoutName == "" {
			layoutName = cfg.Convert.Layout
		}
		layout, err := layoutFromName(layoutName)
		if err != nil {
			exitWithError("invalid layout", err)
		}
		if err := inspectLog(args[0], layout); err != nil {
			exitWithError("inspect failed", err)
		}
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectLayout, "layout", "l", "",
		"producer layout: linux-le-64 or linux-le-32 (default from config)")
	rootCmd.AddCommand(inspectCmd)
}

func inspectLog(path string, layout response.Layout) error {
	s, err := response.Open(path, response.WithLayout(layout))
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("%s (%s mode)\n", path, s.Mode())
	for i := 0; ; i++ {
		rec, err := s.Next()
		if errors.Is(err, io.EOF) {
			fmt.Printf("%d records\n", i)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("#%-4d %-16s tag=%d size=%d%s\n",
			i, rec.Kind, rec.Tag, len(rec.Payload), describeRecord(layout, rec))
	}
}

// describeRecord renders the decoded value of a record where one exists.
func describeRecord(layout response.Layout, rec response.Record) string {
	switch rec.Kind {
	case response.KindSockname, response.KindDstAddr, response.KindPeername:
		if len(rec.Payload) >= 8 {
			return "  " + response.DecodeSockaddr(layout, rec.Payload).String()
		}
	case response.KindPacket, response.KindData:
		if summary := packetSummary(rec.Payload); summary != "" {
			return "  " + summary
		}
	case response.KindRcvdTTL, response.KindLength:
		if v, ok := response.DecodeScalar(layout, rec.Payload); ok {
			return fmt.Sprintf("  value=%d", v)
		}
	}
	return ""
}

// packetSummary decodes a captured packet payload with gopacket and lists
// its layers. Payloads start at the IP header; the version nibble picks the
// first layer.
func packetSummary(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	var first gopacket.LayerType
	switch p[0] >> 4 {
	case 4:
		first = layers.LayerTypeIPv4
	case 6:
		first = layers.LayerTypeIPv6
	default:
		// Not an IP header; likely an ICMP-only capture or application data.
		return ""
	}

	pkt := gopacket.NewPacket(p, first, gopacket.Default)
	names := make([]string, 0, len(pkt.Layers()))
	for _, l := range pkt.Layers() {
		names = append(names, l.LayerType().String())
	}
	return strings.Join(names, "/")
}
