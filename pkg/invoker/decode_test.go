package invoker

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"testing"
)

func rawOutput(out string) RawCall {
	return func(context.Context) ([]byte, error) {
		return []byte(out), nil
	}
}

func TestDecodeJSON(t *testing.T) {
	res, err := DecodeJSON(rawOutput("\n{\"address\": \"bcrt1qxyz\", \"n\": 3}\n"), "address")(context.Background())
	require.NoError(t, err)

	addr, err := res.StringField("address")
	require.NoError(t, err)
	require.Equal(t, "bcrt1qxyz", addr)
	require.Equal(t, float64(3), res["n"])
}

func TestDecodeJSONMalformed(t *testing.T) {
	cases := map[string]string{
		"partial log": "2024-01-01 [INF] LTND: waiting for wallet",
		"array":       "[1, 2]",
		"empty":       "",
		"null":        "null",
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeJSON(rawOutput(out))(context.Background())
			var malformed *MalformedResultError
			require.True(t, errors.As(err, &malformed))
			require.Empty(t, malformed.Field)
		})
	}
}

func TestDecodeJSONMissingField(t *testing.T) {
	_, err := DecodeJSON(rawOutput(`{"other": 1}`), "identity_pubkey")(context.Background())
	var malformed *MalformedResultError
	require.True(t, errors.As(err, &malformed))
	require.Equal(t, "identity_pubkey", malformed.Field)
}

func TestDecodeJSONPassesRawError(t *testing.T) {
	boom := errors.New("boom")
	_, err := DecodeJSON(func(context.Context) ([]byte, error) { return nil, boom })(context.Background())
	require.Equal(t, boom, err)
}

func TestStringField(t *testing.T) {
	res := Result{"id": "", "num": 1.0}
	_, err := res.StringField("id")
	require.Error(t, err)
	_, err = res.StringField("num")
	require.Error(t, err)
	_, err = res.StringField("missing")
	require.Error(t, err)
}
