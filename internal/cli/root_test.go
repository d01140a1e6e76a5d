package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/ronappleton/advisorflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTemplatesCommand(t *testing.T) {
	out, err := run(t, "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "client_onboarding")
	assert.Contains(t, out, "generic-task-completed")
}

func TestFireCommand(t *testing.T) {
	out, err := run(t, "fire", "review-completed", "hh_1", "--entity-name", "Rivera Household")
	require.NoError(t, err)
	var res workflow.FireResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.RecordsCreated)
	assert.Equal(t, []string{"Annual Review Follow-Up"}, res.TriggeredTemplateNames)
}

func TestFireCommandUnknownEventCreatesNothing(t *testing.T) {
	out, err := run(t, "fire", "contract-signed", "hh_1")
	require.NoError(t, err)
	var res workflow.FireResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0, res.RecordsCreated)
	assert.Empty(t, res.TriggeredTemplateNames)
}

func TestInstancesCommandNeedsEntity(t *testing.T) {
	_, err := run(t, "instances")
	assert.Error(t, err)

	out, err := run(t, "instances", "hh_1", "--created-at", "2020-01-01")
	require.NoError(t, err)
	var items []workflow.Instance
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "client_lifecycle", items[0].TemplateID)
}
