package lua

import (
	"fmt"
	"io"

	"github.com/samaelod/fixdesk/types"
)

func WriteProfiles(w io.Writer, p *types.Profiles) error {
	fmt.Fprintln(w, "local config = {}")
	fmt.Fprintln(w)

	// Empty sections are left out so they read back as nil
	if len(p.Sessions) > 0 {
		writeSessions(w, p.Sessions)
	}
	if len(p.Messages) > 0 {
		writeMessages(w, p.Messages)
	}
	_, err := fmt.Fprintln(w, "return config")

	return err
}

func writeSessions(w io.Writer, sessions []types.Profile) {
	fmt.Fprintln(w, "-- SESSIONS ---------------------------------------")
	fmt.Fprintln(w, "config.sessions = {")
	for _, s := range sessions {
		fmt.Fprintln(w, "\t{")
		fmt.Fprintf(w, "\t\tname = %q,\n", s.Name)
		fmt.Fprintf(w, "\t\thost = %q,\n", s.Host)
		fmt.Fprintf(w, "\t\tport = %d,\n", s.Port)
		fmt.Fprintf(w, "\t\tsender = %q,\n", s.Sender)
		fmt.Fprintf(w, "\t\ttarget = %q,\n", s.Target)
		fmt.Fprintf(w, "\t\trole = %q,\n", s.Role)
		fmt.Fprintln(w, "\t},")
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w)
}

func writeMessages(w io.Writer, messages []types.Template) {
	fmt.Fprintln(w, "-- MESSAGES ---------------------------------------")
	fmt.Fprintln(w, "config.messages = {")
	for _, m := range messages {
		fmt.Fprintln(w, "\t{")
		fmt.Fprintf(w, "\t\tname = %q,\n", m.Name)
		fmt.Fprintf(w, "\t\tvalue = %q,\n", m.Value)
		fmt.Fprintln(w, "\t},")
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w)
}
