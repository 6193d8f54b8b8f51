package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/idcheck/mrzscan/internal/mrz"
	"github.com/idcheck/mrzscan/pkg/auth"
	"github.com/idcheck/mrzscan/pkg/config"
	"github.com/idcheck/mrzscan/pkg/logger"
	"github.com/idcheck/mrzscan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	outputFormat = "json"
	verbose = false

	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseCommand_Stdin(t *testing.T) {
	out, err := run(t, "noise before\n"+testutil.TD3Text, "parse")
	require.NoError(t, err)

	var r mrz.Result
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, mrz.TD3, r.Format)
	assert.Equal(t, "ERIKSSON", r.Surname)
	assert.True(t, r.AllCheckDigitsValid)
}

func TestParseCommand_Args(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(testutil.TD1Text), "\n")
	out, err := run(t, "", append([]string{"parse", "--format", "text"}, lines...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "TD1 (VALID)")
	assert.Contains(t, out, "ERIKSSON, ANNA MARIA")
}

func TestParseCommand_Mismatch(t *testing.T) {
	out, err := run(t, testutil.TD3TextBadCheck, "parse", "-f", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "CHECK DIGIT MISMATCH")
	assert.Contains(t, out, "check digit mismatch: "+mrz.FieldDocumentNumber)
}

func TestParseCommand_NoMRZ(t *testing.T) {
	_, err := run(t, "hello", "parse")
	assert.ErrorIs(t, err, errNoMRZ)
}

func TestUnknownFormat(t *testing.T) {
	_, err := run(t, testutil.TD3Text, "parse", "--format", "xml")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("MRZSCAN_AUTH_SECRET", "test-secret")
	tokenTTL = 0

	out, err := run(t, "", "token", "kiosk-7", "--ttl", "1h", "--format", "text")
	require.NoError(t, err)

	manager := auth.NewManager(&config.AuthConfig{Secret: "test-secret", Issuer: "mrzscan"}, logger.Nop())
	claims, err := manager.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "kiosk-7", claims.Subject)
}

func TestTokenCommand_NoSecret(t *testing.T) {
	t.Setenv("MRZSCAN_AUTH_SECRET", "")
	_, err := run(t, "", "token", "kiosk-7")
	assert.Error(t, err)
}

func TestFrameFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.png", "001.jpg", "notes.txt", "003.JPEG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o700))

	files, err := frameFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "001.jpg"),
		filepath.Join(dir, "002.png"),
		filepath.Join(dir, "003.JPEG"),
	}, files)

	_, err = frameFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
