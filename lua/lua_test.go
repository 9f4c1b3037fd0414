package lua

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samaelod/fixdesk/types"
)

const sample = `
local config = {}

config.sessions = {
	{ name = "uat", host = "10.0.0.5", port = 9878, sender = "CLIENT", target = "BROKER", role = "initiator" },
	{ name = "listen", host = "0.0.0.0", port = 9880, sender = "BROKER", target = "CLIENT", role = "acceptor" },
}

config.messages = {
	{ name = "buy msft", value = "35=D|11=ORD1|55=MSFT|54=1|38=100|40=1" },
}

return config
`

func writeLua(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestReadProfiles(t *testing.T) {
	p, err := ReadProfiles(writeLua(t, t.TempDir(), "profiles.lua", sample))
	require.NoError(t, err)

	require.Len(t, p.Sessions, 2)
	uat, ok := p.Find("uat")
	require.True(t, ok)
	ep, err := uat.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, types.SessionEndpoint{Host: "10.0.0.5", Port: 9878, SenderID: "CLIENT", TargetID: "BROKER", Role: types.RoleInitiator}, ep)

	listen, _ := p.Find("listen")
	ep, err = listen.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, types.RoleAcceptor, ep.Role)

	require.Len(t, p.Messages, 1)
	assert.Equal(t, "buy msft", p.Messages[0].Name)
}

func TestReadProfilesInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"not_table.lua": `return 42`,
		"syntax.lua":    `return {`,
		"no_name.lua":   `return { sessions = { { host = "h", port = 1, sender = "a", target = "b" } } }`,
		"dup.lua":       `return { sessions = { { name = "x", host = "h", port = 1, sender = "a", target = "b" }, { name = "x", host = "h", port = 1, sender = "a", target = "b" } } }`,
		"bad_port.lua":  `return { sessions = { { name = "x", host = "h", port = 0, sender = "a", target = "b" } } }`,
		"bad_role.lua":  `return { sessions = { { name = "x", host = "h", port = 1, sender = "a", target = "b", role = "peer" } } }`,
		"empty_msg.lua": `return { messages = { { name = "x" } } }`,
	}
	for name, body := range cases {
		_, err := ReadProfiles(writeLua(t, dir, name, body))
		assert.Error(t, err, name)
	}
}

func TestWriteProfilesRoundTrip(t *testing.T) {
	in := &types.Profiles{
		Sessions: []types.Profile{types.ProfileFor("", types.SessionEndpoint{Host: "127.0.0.1", Port: 9878, SenderID: "A", TargetID: "B", Role: types.RoleAcceptor})},
		Messages: []types.Template{{Name: "hb", Value: "35=0"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteProfiles(&buf, in))

	out, err := ReadProfiles(writeLua(t, t.TempDir(), "out.lua", buf.String()))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, "A-B", out.Sessions[0].Name)
}

func TestSaveToRecent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recent")
	p := &types.Profiles{Sessions: []types.Profile{{Name: "s", Host: "h", Port: 1, Sender: "a", Target: "b", Role: "initiator"}}}

	first, err := SaveToRecent(dir, p, "capture.pcap")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "capture_1.lua"), first)

	second, err := SaveToRecent(dir, p, "capture.pcap")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "capture_2.lua"), second)

	got, err := ReadProfiles(second)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	src := writeLua(t, t.TempDir(), "mine.lua", sample)
	copied, err := SaveToRecent(dir, nil, src)
	require.NoError(t, err)
	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, sample, string(data))
}
