// Package codec turns raw FIX wire text into DecodedMessage values and
// user-typed text into canonical wire text.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samaelod/fixdesk/catalog"
	"github.com/samaelod/fixdesk/types"
)

const (
	SOH = "\x01"

	tagMsgType      = "35"
	tagSendingTime  = "52"
	tagTransactTime = "60"
)

// Display delimiters a user may type instead of SOH, in detection order.
const (
	pipeDelimiter        = "|"
	caretDelimiter       = "^A"
	replacementDelimiter = "\uFFFD"
)

var timeLayouts = []string{
	"20060102-15:04:05", // fractional seconds are accepted when parsing
	"20060102-15:04",
	"20060102",
}

// Pair is one raw tag=value token.
type Pair struct {
	Tag   string
	Value string
}

// Normalize replaces the first detected display delimiter with SOH.
// Pipe wins over caret-A, which wins over U+FFFD.
func Normalize(text string) string {
	switch {
	case strings.Contains(text, pipeDelimiter):
		return strings.ReplaceAll(text, pipeDelimiter, SOH)
	case strings.Contains(text, caretDelimiter):
		return strings.ReplaceAll(text, caretDelimiter, SOH)
	case strings.Contains(text, replacementDelimiter):
		return strings.ReplaceAll(text, replacementDelimiter, SOH)
	}
	return text
}

// Pairs splits wire text into tag=value tokens. Empty tokens and tokens
// without a tag are skipped.
func Pairs(wire string) []Pair {
	tokens := strings.Split(wire, SOH)
	pairs := make([]Pair, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		tag, value, ok := strings.Cut(tok, "=")
		if !ok || tag == "" {
			continue
		}
		pairs = append(pairs, Pair{Tag: tag, Value: value})
	}
	return pairs
}

// Decode never fails: malformed tokens are dropped, unknown tags get catalog
// placeholders and unparseable times fall back to observedAt.
// Text without any SOH is treated as display text and normalized first.
func Decode(raw string, dir types.Direction, observedAt time.Time) types.DecodedMessage {
	wire := strings.TrimRight(raw, "\r\n")
	if !strings.Contains(wire, SOH) {
		wire = Normalize(wire)
	}

	msg := types.DecodedMessage{
		ID:        uuid.NewString(),
		Direction: dir,
		RawText:   wire,
	}

	var sendingTime, transactTime string
	for _, p := range Pairs(wire) {
		info := catalog.Lookup(p.Tag)
		msg.Fields = append(msg.Fields, types.DecodedField{
			Tag:         p.Tag,
			Name:        info.Name,
			Value:       p.Value,
			Description: info.Description,
		})

		switch p.Tag {
		case tagMsgType:
			if msg.MsgType == "" {
				msg.MsgType = p.Value
			}
		case tagSendingTime:
			if sendingTime == "" {
				sendingTime = p.Value
			}
		case tagTransactTime:
			if transactTime == "" {
				transactTime = p.Value
			}
		}
	}

	if msg.MsgType == "" {
		msg.Description = "Unknown Type"
	} else {
		msg.Description = catalog.MessageType(msg.MsgType)
	}

	msg.Timestamp = observedAt
	if ts, ok := ParseTime(sendingTime); ok {
		msg.Timestamp = ts
	} else if ts, ok := ParseTime(transactTime); ok {
		msg.Timestamp = ts
	}

	return msg
}

// ParseTime parses a FIX UTCTimestamp.
func ParseTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Encode turns user text into canonical wire text: SOH separated, no empty
// fields, trailing SOH. Length and checksum are left to the engine.
func Encode(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message is empty", types.ErrInvalidMessageSyntax)
	}

	var (
		tokens     []string
		hasMsgType bool
	)
	for i, tok := range strings.Split(Normalize(text), SOH) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		tag, _, ok := strings.Cut(tok, "=")
		if !ok {
			return "", fmt.Errorf("%w: field %d %q has no '='", types.ErrInvalidMessageSyntax, i+1, tok)
		}
		if n, err := strconv.Atoi(tag); err != nil || n <= 0 {
			return "", fmt.Errorf("%w: field %d has invalid tag %q", types.ErrInvalidMessageSyntax, i+1, tag)
		}
		if tag == tagMsgType {
			hasMsgType = true
		}
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: no fields", types.ErrInvalidMessageSyntax)
	}
	if !hasMsgType {
		return "", fmt.Errorf("%w: missing MsgType (35)", types.ErrInvalidMessageSyntax)
	}

	return strings.Join(tokens, SOH) + SOH, nil
}

// Display renders wire text with SOH shown as a pipe.
func Display(wire string) string {
	return strings.ReplaceAll(wire, SOH, pipeDelimiter)
}

// Format renders one "NN: tag=value" line per field.
func Format(wire string) string {
	if wire == "" {
		return "No message content"
	}
	var sb strings.Builder
	n := 0
	for _, tok := range strings.Split(wire, SOH) {
		if tok == "" {
			continue
		}
		n++
		if n > 1 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%2d: %s", n, tok)
	}
	return sb.String()
}
