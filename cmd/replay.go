package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/logging"
	"github.com/samaelod/fixdesk/pcapreader"
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Print the FIX messages found in a pcap or pcapng capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.LogLevel, nil, logging.Console(os.Stderr, level.Level()))
		if err != nil {
			return err
		}
		defer log.Sync()

		port, _ := cmd.Flags().GetInt("local-port")
		raw, _ := cmd.Flags().GetBool("raw")

		msgs, err := pcapreader.ReadPCAP(args[0], pcapreader.Options{LocalPort: port, Logger: log})
		if err != nil {
			return fmt.Errorf("read capture: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, msg := range msgs {
			if raw {
				fmt.Fprintf(out, "%s %s %s\n", msg.Timestamp.Format("15:04:05.000000"), msg.Direction.Arrow(), codec.Display(msg.RawText))
				continue
			}
			printMessage(out, msg)
		}
		fmt.Fprintf(out, "%d messages\n", len(msgs))
		return nil
	},
}

func init() {
	replayCmd.Flags().Int("local-port", 0, "Port of the local side; 0 takes the destination of the first frame")
	replayCmd.Flags().Bool("raw", false, "Print wire text instead of decoded fields")
	rootCmd.AddCommand(replayCmd)
}
