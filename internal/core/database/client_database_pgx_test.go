package db

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cert := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))

	tests := []struct {
		name    string
		url     string
		cert    string
		want    string
		wantErr bool
	}{
		{name: "empty url", wantErr: true},
		{name: "no cert", url: "postgres://u:p@localhost:5432/examina", want: "postgres://u:p@localhost:5432/examina"},
		{name: "missing cert", url: "postgres://localhost/examina", cert: "/does/not/exist.pem", wantErr: true},
		{
			name: "cert",
			url:  "postgres://localhost/examina",
			cert: cert,
			want: "postgres://localhost/examina?sslmode=verify-ca&sslrootcert=" + url.QueryEscape(cert),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.url, tt.cert)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	s, err := optionsJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)

	opts, err := parseOptions([]byte(s))
	require.NoError(t, err)
	assert.Nil(t, opts)

	s, err = optionsJSON([]string{"True", "False"})
	require.NoError(t, err)
	opts, err = parseOptions([]byte(s))
	require.NoError(t, err)
	assert.Equal(t, []string{"True", "False"}, opts)

	_, err = parseOptions([]byte("{"))
	assert.Error(t, err)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("doc-1").Valid)
}
