package properties

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePairsTokensInOrder(t *testing.T) {
	m, err := Decode("name;width;height", "lena;512;512")
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())
	require.Equal(t, []string{"name", "width", "height"}, m.Keys())

	v, ok := m.Get("width")
	require.True(t, ok)
	require.Equal(t, "512", v)
}

func TestDecodeTokenCountMismatch(t *testing.T) {
	_, err := Decode("a;b", "1")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode("a", "1;2;3")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeEmptyKeysYieldsEmptyMap(t *testing.T) {
	// The values string is not consulted at all when keys is absent.
	m, err := Decode("", "orphan;values")
	require.NoError(t, err)
	require.Equal(t, 0, m.Len())
}

func TestDecodeDuplicateKeysLastValueWins(t *testing.T) {
	m, err := Decode("a;b;a", "1;2;3")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, m.Keys())

	v, _ := m.Get("a")
	require.Equal(t, "3", v)
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []struct{ keys, values string }{
		{"a", "1"},
		{"a;b;c", "1;2;3"},
		{"name;author", "sunset;anon"},
	}
	for _, tc := range cases {
		m, err := Decode(tc.keys, tc.values)
		require.NoError(t, err)

		keys, values := m.Encode()
		require.Equal(t, tc.keys, keys)
		require.Equal(t, tc.values, values)
	}
}

func TestEncodeEmptyMap(t *testing.T) {
	keys, values := New().Encode()
	if keys != "" || values != "" {
		t.Errorf("expected empty strings, got %q %q", keys, values)
	}
}

func TestMarshalJSONPreservesInsertionOrder(t *testing.T) {
	m := New()
	m.Set("zulu", "1")
	m.Set("alpha", "2")
	m.Set("mike", "3")

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"zulu":"1","alpha":"2","mike":"3"}`, string(raw))
	require.Equal(t, `{"zulu":"1","alpha":"2","mike":"3"}`, string(raw))
}

func TestCloneIsIndependent(t *testing.T) {
	m := New()
	m.Set("a", "1")

	c := m.Clone()
	c.Set("a", "changed")
	c.Set("b", "2")

	v, _ := m.Get("a")
	require.Equal(t, "1", v)
	require.Equal(t, 1, m.Len())
}
