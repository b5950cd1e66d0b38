package alerting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
rules:
  - node_id: 1
    field_to_monitor: bin_3_cycles
    threshold: 15
    alert_message: "N{node} val{value} thr{threshold}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.EqualValues(t, 1, rules[0].NodeID)
	assert.Equal(t, "bin_3_cycles", rules[0].FieldToMonitor)
	assert.Equal(t, 15.0, rules[0].Threshold)
}

func TestEvaluateScenarioTwo(t *testing.T) {
	eval := NewEvaluator([]Rule{{
		NodeID:         1,
		FieldToMonitor: "bin_3_cycles",
		Threshold:      15,
		AlertMessage:   "N{node} val{value} thr{threshold}",
	}})

	alerts := eval.Evaluate(1, map[string]float64{"bin_3_cycles": 20})
	require.Len(t, alerts, 1)
	assert.Equal(t, "N1 val20 thr15", alerts[0])
}

func TestEvaluateStrictGreaterThan(t *testing.T) {
	eval := NewEvaluator([]Rule{{NodeID: 1, FieldToMonitor: "bin_3_cycles", Threshold: 20, AlertMessage: "x"}})

	assert.Empty(t, eval.Evaluate(1, map[string]float64{"bin_3_cycles": 20}), "value == threshold must not alert")
	assert.Len(t, eval.Evaluate(1, map[string]float64{"bin_3_cycles": 21}), 1)
}

func TestEvaluateIgnoresOtherNodes(t *testing.T) {
	eval := NewEvaluator([]Rule{{NodeID: 1, FieldToMonitor: "bin_3_cycles", Threshold: 5, AlertMessage: "x"}})
	assert.Empty(t, eval.Evaluate(2, map[string]float64{"bin_3_cycles": 100}))
}
