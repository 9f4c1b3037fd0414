package engine

import (
	"fmt"
	"strconv"

	"github.com/quickfixgo/quickfix"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/types"
)

// headerTags are the standard header fields that belong in Message.Header.
var headerTags = map[int]bool{
	8: true, 35: true, 49: true, 56: true, 34: true, 52: true,
	43: true, 50: true, 57: true, 97: true, 115: true, 116: true,
	122: true, 128: true, 129: true, 142: true, 143: true, 1128: true, 1129: true,
}

// buildMessage turns SOH separated wire text into a quickfix message. Body
// length and checksum are dropped; the engine computes them on send.
func buildMessage(raw string) (*quickfix.Message, error) {
	msg := quickfix.NewMessage()
	hasType := false
	for _, p := range codec.Pairs(raw) {
		tag, err := strconv.Atoi(p.Tag)
		if err != nil || tag <= 0 {
			return nil, fmt.Errorf("%w: tag %q", types.ErrInvalidMessageSyntax, p.Tag)
		}
		switch {
		case tag == 9 || tag == 10:
			continue
		case headerTags[tag]:
			msg.Header.SetString(quickfix.Tag(tag), p.Value)
		default:
			msg.Body.SetString(quickfix.Tag(tag), p.Value)
		}
		if tag == 35 {
			hasType = true
		}
	}
	if !hasType {
		return nil, fmt.Errorf("%w: missing MsgType (35)", types.ErrInvalidMessageSyntax)
	}
	return msg, nil
}
