package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aci1   = "00000000-0000-4000-8000-000000000001"
	aci2   = "00000000-0000-4000-8000-000000000002"
	phone1 = "+16505550001"
	phone2 = "+16505550002"
	phone3 = "+16505550003"
)

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "recon %v", args)
	return out
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestMerge_PrintsRow(t *testing.T) {
	db := tempDB(t)
	out := mustExecute(t, "merge", "--db", db, "--aci", aci1, "--phone", phone1)
	assert.Equal(t, "1 aci="+aci1+" phone="+phone1+" pni=- devices=- registered\n", out)
}

func TestMerge_RecipientsGolden(t *testing.T) {
	db := tempDB(t)
	mustExecute(t, "merge", "--db", db, "--aci", aci1, "--phone", phone1)
	mustExecute(t, "merge", "--db", db, "--aci", aci2)
	mustExecute(t, "merge", "--db", db, "--phone", phone2)
	mustExecute(t, "merge", "--db", db, "--aci", aci2, "--phone", phone2, "--trust", "high")

	out := mustExecute(t, "recipients", "--db", db)
	newGoldie(t).Assert(t, "recipients-after-merges", []byte(out))
}

func TestMerge_JSON(t *testing.T) {
	out := mustExecute(t, "--format", "json", "merge", "--db", tempDB(t), "--aci", aci1)

	var resp struct {
		Status string        `json:"status"`
		Data   RecipientView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, aci1, resp.Data.Aci)
	assert.Empty(t, resp.Data.Phone)
	assert.Equal(t, []uint32{}, resp.Data.DeviceIDs)
	assert.True(t, resp.Data.Registered)
}

func TestMerge_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no identifiers", []string{}, "invalid address"},
		{"bad aci", []string{"--aci", "nope"}, "invalid address"},
		{"bad phone", []string{"--phone", "16505550001"}, "invalid address"},
		{"bad trust", []string{"--aci", aci1, "--trust", "medium"}, "invalid --trust"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"merge", "--db", tempDB(t)}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRecipients_Empty(t *testing.T) {
	out := mustExecute(t, "recipients", "--db", tempDB(t))
	assert.Equal(t, "0 recipients\n", out)
}

func TestBlock_Lifecycle(t *testing.T) {
	db := tempDB(t)

	out := mustExecute(t, "block", "--db", db, "--phone", phone1)
	assert.Equal(t, "blocked <phone:"+phone1+">\n", out)

	out = mustExecute(t, "block", "--db", db, "--phone", phone1)
	assert.Equal(t, "<phone:"+phone1+"> already blocked\n", out)

	out = mustExecute(t, "block", "--db", db, "--group", "0102", "--title", "book club")
	assert.Equal(t, "blocked group 0102\n", out)

	out = mustExecute(t, "blocked", "--db", db)
	assert.Equal(t, "phone "+phone1+"\ngroup 0102\nchange token 2, needs sync\n", out)

	out = mustExecute(t, "unblock", "--db", db, "--group", "0102")
	assert.Equal(t, "unblocked group 0102\n", out)

	out = mustExecute(t, "unblock", "--db", db, "--aci", aci1)
	assert.Equal(t, "<aci:"+aci1+"> already unblocked\n", out)

	out = mustExecute(t, "blocked", "--db", db)
	assert.Equal(t, "phone "+phone1+"\nchange token 3, needs sync\n", out)
}

func TestBlock_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"group with phone", []string{"--group", "01", "--phone", phone1}, "cannot be combined"},
		{"bad group", []string{"--group", "zz"}, "invalid --group"},
		{"nothing", []string{}, "invalid address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"block", "--db", tempDB(t)}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSyncBlocked_Outgoing(t *testing.T) {
	db := tempDB(t)
	mustExecute(t, "block", "--db", db, "--aci", aci1)

	out := mustExecute(t, "sync-blocked", "--db", db)
	assert.Equal(t, "sent 1 acis, 0 phones, 0 groups at change token 1\n", out)

	out = mustExecute(t, "sync-blocked", "--db", db)
	assert.Equal(t, "blocked list already in sync at change token 1\n", out)

	out = mustExecute(t, "blocked", "--db", db)
	assert.Equal(t, "aci "+aci1+"\nchange token 1, in sync\n", out)
}

func TestSyncBlocked_Incoming(t *testing.T) {
	db := tempDB(t)
	mustExecute(t, "block", "--db", db, "--phone", phone1)

	incoming := filepath.Join(t.TempDir(), "incoming.yaml")
	require.NoError(t, os.WriteFile(incoming, []byte("acis: [\""+aci2+"\"]\nphones: []\ngroups: [\"0a0b\"]\n"), 0644))

	out := mustExecute(t, "sync-blocked", "--db", db, "--incoming", incoming)
	assert.Equal(t, "applied incoming sync (changed: true), change token 2\n", out)

	out = mustExecute(t, "blocked", "--db", db)
	assert.Equal(t, "aci "+aci2+"\ngroup 0a0b\nchange token 2, in sync\n", out)
}

func TestSyncBlocked_BadIncoming(t *testing.T) {
	incoming := filepath.Join(t.TempDir(), "incoming.yaml")
	require.NoError(t, os.WriteFile(incoming, []byte("acis: []\nnumbers: []\n"), 0644))

	_, err := execute(t, "sync-blocked", "--db", tempDB(t), "--incoming", incoming)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestDirectory_Import(t *testing.T) {
	db := tempDB(t)
	results := filepath.Join("..", "directory", "testdata", "results.yaml")

	out := mustExecute(t, "directory", "import", "--db", db, results)
	assert.Equal(t, "applied 2, unregistered 0, failed 0\n", out)

	out = mustExecute(t, "recipients", "--db", db)
	assert.Contains(t, out, "aci="+aci1+" phone="+phone1+" pni=- devices=1 registered")
	assert.Contains(t, out, "2 recipients")
}

func TestDirectory_ImportMissingFile(t *testing.T) {
	_, err := execute(t, "directory", "import", "--db", tempDB(t), filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDirectory_Refresh(t *testing.T) {
	db := tempDB(t)
	results := filepath.Join("..", "directory", "testdata", "results.yaml")
	mustExecute(t, "merge", "--db", db, "--phone", phone3)

	out := mustExecute(t, "directory", "refresh", "--db", db, "--results", results, phone1, phone3)
	assert.Equal(t, "applied 1, unregistered 1, failed 0\n", out)

	out = mustExecute(t, "recipients", "--db", db)
	assert.Contains(t, out, "phone="+phone3+" pni=- devices=- unregistered")
}

func TestDirectory_RefreshRequiresResults(t *testing.T) {
	_, err := execute(t, "directory", "refresh", "--db", tempDB(t), phone1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results")
}

func TestRebuild(t *testing.T) {
	db := tempDB(t)
	mustExecute(t, "merge", "--db", db, "--aci", aci1)
	mustExecute(t, "merge", "--db", db, "--aci", aci1, "--phone", phone1)

	out := mustExecute(t, "rebuild", "--db", db)
	assert.Equal(t, "group rosters rebuilt\n", out)

	out = mustExecute(t, "--format", "json", "rebuild", "--db", db)
	var resp struct {
		Status string        `json:"status"`
		Data   RebuildResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Ran)
	assert.Equal(t, uint64(1), resp.Data.Version)
}

func TestScenarios_All(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := filepath.Join("..", "harness", "testdata", "golden")

	out := mustExecute(t, "scenarios", scenarios, "--golden", golden)
	assert.Contains(t, out, "✓ local-account")
	assert.Contains(t, out, "Summary: 7 passed, 0 failed, 7 total")
}

func TestScenarios_UpdateThenCompare(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := t.TempDir()

	mustExecute(t, "scenarios", scenarios, "--filter", "stolen-*", "--golden", golden, "--update")
	_, err := os.Stat(filepath.Join(golden, "stolen-number.golden"))
	require.NoError(t, err)

	out := mustExecute(t, "scenarios", scenarios, "--filter", "stolen-*", "--golden", golden)
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total")
}

func TestScenarios_Failure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: expects no recipients after a merge
steps:
  - { aci: u1, phone: p1 }
assertions:
  - type: recipients
    pairs: []
`), 0644))

	out, err := execute(t, "scenarios", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Summary: 0 passed, 1 failed, 1 total")
}

func TestScenarios_MissingDir(t *testing.T) {
	_, err := execute(t, "scenarios", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
