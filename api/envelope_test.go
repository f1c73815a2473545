package api_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetstack/securelink/api"
)

func TestIsEncryptedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{
			"full envelope",
			`{"sessionId":"s","encryptedData":"d","encryptedKey":"k"}`,
			true,
		},
		{
			"envelope with extra fields",
			`{"sessionId":"s","encryptedData":"d","encryptedKey":"k","payloadType":"x"}`,
			true,
		},
		{
			"empty strings still match structurally",
			`{"sessionId":"","encryptedData":"","encryptedKey":""}`,
			true,
		},
		{
			"missing encryptedKey",
			`{"sessionId":"s","encryptedData":"d"}`,
			false,
		},
		{
			"sessionId not a string",
			`{"sessionId":42,"encryptedData":"d","encryptedKey":"k"}`,
			false,
		},
		{
			"encryptedData is null",
			`{"sessionId":"s","encryptedData":null,"encryptedKey":"k"}`,
			false,
		},
		{"plain object", `{"status":"ok"}`, false},
		{"array", `[1,2,3]`, false},
		{"string", `"hello"`, false},
		{"not json", `not json`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, api.IsEncryptedEnvelope([]byte(tt.raw)))
		})
	}
}

func TestTime_RoundTrip(t *testing.T) {
	in := api.Time{Time: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.Equal(t, `"2026-03-14T09:26:53Z"`, string(data))

	var out api.Time
	require.NoError(t, json.Unmarshal(data, &out))
	require.True(t, out.Equal(in.Time))
}

func TestTime_UnmarshalRejectsGarbage(t *testing.T) {
	var out api.Time
	require.Error(t, json.Unmarshal([]byte(`"not-a-time"`), &out))
	require.Error(t, json.Unmarshal([]byte(`42`), &out))
}

func TestSessionResponse_Decode(t *testing.T) {
	raw := `{"sessionId":"sess-1","publicKey":"QUJD","expiryTime":"2026-03-14T09:26:53Z"}`

	var resp api.SessionResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	require.Equal(t, "sess-1", resp.SessionID)
	require.Equal(t, "QUJD", resp.PublicKey)
	require.Equal(t, 2026, resp.ExpiryTime.Year())
}
