package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audd/internal/ir"
)

func TestStoreWorkflow(t *testing.T) {
	dir, irA, irB := pipelineFiles(t)
	db := filepath.Join(dir, "audd.db")
	diffPath := filepath.Join(dir, "diff.json")
	planPath := filepath.Join(dir, "plan.json")
	resultPath := filepath.Join(dir, "result.json")

	stdout, stderr, code := runCLI(t, "import", irA, "--dataset", "customers", "--db", db)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Imported 2 records into customers")

	_, _, code = runCLI(t, "compare", irA, irB, "-o", diffPath)
	require.Equal(t, ExitSuccess, code)
	_, _, code = runCLI(t, "propose", diffPath, "-o", planPath, "--strategy", "aggressive", "--prefer", "b")
	require.Equal(t, ExitSuccess, code)

	// A dry run reports success and leaves the dataset as imported.
	stdout, _, code = runCLI(t, "apply", planPath, "--dataset", "customers", "--db", db, "--dry-run")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Dry run: 2 succeeded, 0 failed, 0 skipped")

	stdout, _, code = runCLI(t, "apply", planPath, "--dataset", "customers", "--db", db, "-o", resultPath, "--format", "json")
	require.Equal(t, ExitSuccess, code, stdout)
	applied := decodeEnvelope(t, stdout).Data.(map[string]any)
	backupID, _ := applied["backup"].(string)
	require.NotEmpty(t, backupID)
	res := readApplyResult(t, resultPath)
	assert.True(t, res.Applied)

	stdout, _, code = runCLI(t, "datasets", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code)
	datasets := decodeEnvelope(t, stdout).Data.(map[string]any)["datasets"].([]any)
	require.Len(t, datasets, 1)
	assert.Equal(t, "customers", datasets[0].(map[string]any)["name"])
	assert.Equal(t, float64(3), datasets[0].(map[string]any)["records"])

	stdout, _, code = runCLI(t, "log", "--dataset", "customers", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code)
	entries := decodeEnvelope(t, stdout).Data.(map[string]any)["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, true, entries[0].(map[string]any)["dry_run"])
	assert.Equal(t, backupID, entries[1].(map[string]any)["backup_id"])

	stdout, _, code = runCLI(t, "log", "--dataset", "customers", "--db", db)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Applies to customers:")
	assert.Contains(t, stdout, "backup "+backupID)

	// Restoring the backup undoes the apply.
	stdout, _, code = runCLI(t, "restore", "--dataset", "customers", "--backup", backupID, "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code, stdout)
	restored := decodeEnvelope(t, stdout).Data.(map[string]any)
	assert.Equal(t, float64(2), restored["records"])
}

func TestApply_PartialFailureExitsOne(t *testing.T) {
	dir, irA, irB := pipelineFiles(t)
	db := filepath.Join(dir, "audd.db")
	diffPath := filepath.Join(dir, "diff.json")
	planPath := filepath.Join(dir, "plan.json")

	// The target holds only record 2, so setting a field of record 1 fails.
	only2 := writeFile(t, dir, "only2.csv", "id,name\n2,Bo\n")
	target := filepath.Join(dir, "only2.ir.json")
	_, _, code := runCLI(t, "build", only2, "-o", target)
	require.Equal(t, ExitSuccess, code)
	_, _, code = runCLI(t, "import", target, "--dataset", "customers", "--db", db)
	require.Equal(t, ExitSuccess, code)

	_, _, code = runCLI(t, "compare", irA, irB, "-o", diffPath)
	require.Equal(t, ExitSuccess, code)
	_, _, code = runCLI(t, "propose", diffPath, "-o", planPath, "--strategy", "aggressive", "--prefer", "b")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := runCLI(t, "apply", planPath, "--dataset", "customers", "--db", db, "--format", "json")
	assert.Equal(t, ExitFailure, code)
	resp := decodeEnvelope(t, stdout)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "partial_apply", resp.Error.Code)
	assert.Equal(t, "1 action(s) failed", resp.Error.Message)
	statuses := resp.Data.(map[string]any)["statuses"].(map[string]any)
	assert.Equal(t, float64(1), statuses["succeeded"])
	assert.Equal(t, float64(1), statuses["failed"])
}

func TestApply_Errors(t *testing.T) {
	dir, irA, _ := pipelineFiles(t)
	db := filepath.Join(dir, "audd.db")
	plan := writeFile(t, dir, "plan.json", `{"version":"1.0","strategy":"balanced","prefer_source":"merge","key_fields":["id"],"actions":[]}`)

	// Exactly one of --dataset and --ir.
	_, _, code := runCLI(t, "apply", plan)
	assert.Equal(t, ExitCommandError, code)
	_, _, code = runCLI(t, "apply", plan, "--dataset", "x", "--ir", irA)
	assert.Equal(t, ExitCommandError, code)

	stdout, _, code := runCLI(t, "apply", plan, "--dataset", "missing", "--db", db, "--format", "json")
	assert.Equal(t, ExitCommandError, code)
	assert.Equal(t, "invalid_input", decodeEnvelope(t, stdout).Error.Code)

	// An empty plan applies cleanly.
	_, _, code = runCLI(t, "apply", plan, "--ir", irA)
	assert.Equal(t, ExitSuccess, code)
}

func TestRestore_UnknownBackup(t *testing.T) {
	dir, irA, _ := pipelineFiles(t)
	db := filepath.Join(dir, "audd.db")
	_, _, code := runCLI(t, "import", irA, "--dataset", "customers", "--db", db)
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := runCLI(t, "restore", "--dataset", "customers", "--backup", "nope", "--db", db, "--format", "json")
	assert.Equal(t, ExitCommandError, code)
	assert.Equal(t, "invalid_input", decodeEnvelope(t, stdout).Error.Code)
}

func TestDatasets_Empty(t *testing.T) {
	stdout, _, code := runCLI(t, "datasets", "--db", filepath.Join(t.TempDir(), "audd.db"))
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "No datasets stored.")
}

func readApplyResult(t *testing.T, path string) *ir.ApplyResult {
	t.Helper()
	data := readFileBytes(t, path)
	res, err := ir.DecodeApplyResult(data)
	require.NoError(t, err)
	return res
}
