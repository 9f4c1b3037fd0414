package codec

import "strings"

type Severity int

const (
	SeverityNone Severity = iota
	SeverityOK
	SeverityWarn
)

// Hint is the live feedback shown while a message is being typed.
type Hint struct {
	Severity Severity
	Text     string
}

const minFields = 3

// Check gives a quick structural verdict on user text. It is advisory only;
// Encode remains the gate for sending.
func Check(text string) Hint {
	if strings.TrimSpace(text) == "" {
		return Hint{}
	}
	if len(Pairs(Normalize(strings.TrimSpace(text)))) < minFields {
		return Hint{Severity: SeverityWarn, Text: "⚠ Message seems incomplete"}
	}
	if strings.Contains(text, tagMsgType+"=") {
		return Hint{Severity: SeverityOK, Text: "✓ Valid FIX structure detected"}
	}
	return Hint{Severity: SeverityWarn, Text: "⚠ No MsgType (35) found"}
}
