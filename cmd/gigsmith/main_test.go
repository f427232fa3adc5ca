package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/gigsmith/internal/config"
	"github.com/cgast/gigsmith/pkg/gig"
	"github.com/cgast/gigsmith/pkg/protocol"
)

// execute runs the root command in a scratch directory against a config
// path that does not exist, so defaults apply.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "missing", "config.yaml")
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath, "--log-level", "disabled"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

const overlayYAML = `apiVersion: gigsmith/v1
kind: TaskOverlay
meta:
  name: short-timeouts
tasks:
  - id: title
    timeout: 3s
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenerateCommand(t *testing.T) {
	out, err := execute(t, "", "generate", "--no-history", "--seed", "5", "logo", "design")
	require.NoError(t, err)

	var resp gig.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Listing)
	assert.True(t, strings.HasPrefix(resp.Listing.Title, gig.TitlePrefix))
	assert.Len(t, resp.Listing.Tags, gig.TagCount)
	assert.NotEmpty(t, resp.Repaired)
}

func TestGenerateCommandFormats(t *testing.T) {
	out, err := execute(t, "", "generate", "--no-history", "-f", "text", "seo audit")
	require.NoError(t, err)
	assert.Contains(t, out, gig.TitlePrefix)
	assert.Contains(t, out, "Premium")

	out, err = execute(t, "", "generate", "--no-history", "-f", "yaml", "seo audit")
	require.NoError(t, err)
	assert.Contains(t, out, "listing:")
	assert.Contains(t, out, "delivery_days:")

	_, err = execute(t, "", "generate", "-f", "xml", "seo audit")
	assert.ErrorContains(t, err, "unknown format")
}

func TestGenerateCommandRejectsShortKeyword(t *testing.T) {
	_, err := execute(t, "", "generate", "--no-history", "x")
	assert.ErrorContains(t, err, "at least 2 characters")
}

func TestPlanCommand(t *testing.T) {
	out, err := execute(t, "", "plan")
	require.NoError(t, err)
	assert.Contains(t, out, `Graph "gig": 9 tasks in 3 stages`)
	assert.Contains(t, out, "Inputs: keyword")

	out, err = execute(t, "", "plan", "--json", "--graph", writeFile(t, "overlay.yaml", overlayYAML))
	require.NoError(t, err)
	assert.Contains(t, out, `"graph": "short-timeouts"`)
	assert.Contains(t, out, `"timeout": "3s"`)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "", "validate", writeFile(t, "overlay.yaml", overlayYAML))
	require.NoError(t, err)
	assert.Contains(t, out, `Graph "short-timeouts" is valid`)

	broken := strings.Replace(overlayYAML, "name: short-timeouts", "name: \"\"", 1)
	out, err = execute(t, "", "validate", writeFile(t, "broken.yaml", broken))
	require.Error(t, err)
	assert.Contains(t, out, "meta.name")

	unknown := strings.Replace(overlayYAML, "id: title", "id: nope", 1)
	_, err = execute(t, "", "validate", writeFile(t, "unknown.yaml", unknown))
	assert.Error(t, err)
}

func TestAgentCommand(t *testing.T) {
	stdin := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tasks.list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"gig.validate","params":{"keyword":""}}`,
	}, "\n")
	out, err := execute(t, stdin, "agent")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var list protocol.Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &list))
	assert.Nil(t, list.Error)
	assert.Len(t, list.Result, len(gig.Catalogue()))

	var v protocol.Response
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &v))
	assert.Equal(t, false, v.Result.(map[string]any)["valid"])
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "", "init", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	cfg, err := config.LoadConfig(config.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, "offline", cfg.Generator.Backend)

	_, err = execute(t, "", "init", "--dir", dir)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "", "init", "--dir", dir, "--force")
	assert.NoError(t, err)
}
