package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samaelod/fixdesk/types"
)

func TestDecodeInput(t *testing.T) {
	text, err := decodeInput(strings.NewReader("ignored"), []string{" 35=0|112=X "})
	require.NoError(t, err)
	assert.Equal(t, "35=0|112=X", text)

	text, err = decodeInput(strings.NewReader("35=A|98=0\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "35=A|98=0", text)

	_, err = decodeInput(strings.NewReader("  \n"), nil)
	assert.ErrorIs(t, err, types.ErrInvalidMessageSyntax)
}

func TestDecodeCommand(t *testing.T) {
	var out bytes.Buffer
	decodeCmd.SetOut(&out)
	decodeCmd.SetIn(strings.NewReader(""))
	require.NoError(t, decodeCmd.RunE(decodeCmd, []string{"8=FIXT.1.1|9=5|35=D|11=ORD1|54=1|10=000"}))

	got := out.String()
	assert.Contains(t, got, "New Order Single (35=D)")
	assert.Contains(t, got, "ClOrdID")
	assert.Contains(t, got, "ORD1")
}
