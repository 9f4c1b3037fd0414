package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/types"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [message]",
	Short: "Decode a FIX message into named fields",
	Long:  `Decodes one FIX message given as an argument or on stdin. Fields may be separated by SOH, | or ^A.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := decodeInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		printMessage(cmd.OutOrStdout(), codec.Decode(codec.Normalize(text), types.Inbound, time.Now()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func decodeInput(r io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: empty input", types.ErrInvalidMessageSyntax)
	}
	return text, nil
}

func printMessage(w io.Writer, msg types.DecodedMessage) {
	fmt.Fprintf(w, "%s %s %s (35=%s)\n", msg.Timestamp.Format("15:04:05.000"), msg.Direction.Arrow(), msg.Description, msg.MsgType)
	for _, f := range msg.Fields {
		fmt.Fprintf(w, "  %5s %-22s %s", f.Tag, f.Name, f.Value)
		if f.Description != "" {
			fmt.Fprintf(w, " (%s)", f.Description)
		}
		fmt.Fprintln(w)
	}
}
