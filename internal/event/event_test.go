package event

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"long id is truncated", strings.Repeat("X", 20), "XXXXXXXXXX"},
		{"exact length passes", "0123456789", "0123456789"},
		{"short id passes", "abc", "abc"},
		{"empty id passes", "", ""},
		{"docker id", "4f1d2c3b5a6e7d8c9b0a1f2e3d4c5b6a", "4f1d2c3b5a"},
		{"multibyte id counts characters", "ñetwork-ñame-ñumber-ñine", "ñetwork-ña"},
		{"short multibyte id passes", "ñetwörk", "ñetwörk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShortID(tt.id)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), ShortIDLength)
			assert.Equal(t, got, ShortID(got), "ShortID must be idempotent")
		})
	}
}

func TestMerge_BaseFields(t *testing.T) {
	env := Envelope{ID: strings.Repeat("X", 20), Action: "ACTION", Name: "NAME"}

	payload := Merge(env, nil)

	assert.Equal(t, Payload{"id": "XXXXXXXXXX", "action": "ACTION", "name": "NAME"}, payload)
}

func TestMerge_OverlayWins(t *testing.T) {
	env := Envelope{ID: strings.Repeat("X", 20), Action: "ACTION", Name: "NAME"}

	payload := Merge(env, Payload{"FOO": "BAR", "BAZ": "OTHER", "name": "NONAME"})

	assert.Equal(t, Payload{
		"id":     "XXXXXXXXXX",
		"action": "ACTION",
		"name":   "NONAME",
		"FOO":    "BAR",
		"BAZ":    "OTHER",
	}, payload)
}

func TestMerge_DoesNotMutateOverlay(t *testing.T) {
	env := Envelope{ID: "abc", Action: "destroy"}
	overlay := Payload{"id": "zzz"}

	payload := Merge(env, overlay)

	assert.Equal(t, "zzz", payload["id"])
	assert.Equal(t, Payload{"id": "zzz"}, overlay)
}

func TestParseFields_PreservesOrder(t *testing.T) {
	fields, err := ParseFields([]byte(`{"zeta": 1, "alpha": "a", "mid": [1, 2], "beta": {"x": true}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid", "beta"}, fields.Keys())
	assert.Equal(t, "a", fields.String("alpha"))

	out, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":[1,2],"beta":{"x":true}}`, string(out))
}

func TestParseFields_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	fields, err := ParseFields([]byte(`{"a": 1, "b": 2, "a": 3}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, fields.Keys())
	v, ok := fields.Get("a")
	assert.True(t, ok)
	assert.Equal(t, float64(3), v)
}

func TestParseFields_Malformed(t *testing.T) {
	for _, input := range []string{`not json`, `[1, 2]`, `"string"`, `{"a":`} {
		_, err := ParseFields([]byte(input))
		assert.True(t, errors.Is(err, ErrMalformed), "input %q", input)
	}
}

func TestParse_Envelope(t *testing.T) {
	env, err := Parse([]byte(`{
		"kind": "network",
		"action": "connect",
		"id": "0123456789abcdef",
		"name": "net0",
		"containers": ["c1", "c2"],
		"proxy": "PROXY1",
		"service": "SERVICE1",
		"status": "ok"
	}`))
	require.NoError(t, err)

	assert.Equal(t, KindNetwork, env.Kind)
	assert.Equal(t, "connect", env.Action)
	assert.Equal(t, "0123456789abcdef", env.ID)
	assert.Equal(t, "net0", env.Name)
	assert.Equal(t, []string{"c1", "c2"}, env.Containers)
	assert.Equal(t, "PROXY1", env.Proxy)
	assert.Equal(t, "SERVICE1", env.Service)
	assert.Equal(t, OriginClient, env.Origin)
	assert.Equal(t, []string{"status"}, env.Fields.Keys())
}

func TestParse_UnknownKindIsKept(t *testing.T) {
	env, err := Parse([]byte(`{"kind": "volume", "action": "create"}`))
	require.NoError(t, err)

	assert.Equal(t, Kind("volume"), env.Kind)
	assert.False(t, env.Kind.Valid())
	assert.Empty(t, env.Containers)
}

func TestErrors(t *testing.T) {
	assert.Equal(t, `no handler for event kind "volume"`, (&UnroutableEventError{Kind: "volume"}).Error())
	assert.Equal(t, `network handler does not support action "explode"`,
		(&UnsupportedActionError{Kind: KindNetwork, Action: "explode"}).Error())
}
