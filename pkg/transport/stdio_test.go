package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/logger"
)

func runStdio(t *testing.T, d *Dispatcher, input string) []map[string]interface{} {
	t.Helper()
	var out bytes.Buffer
	s := &StdioServer{
		dispatcher: d,
		log:        logger.New(io.Discard, logger.LevelError),
		in:         strings.NewReader(input),
		out:        &out,
	}
	require.NoError(t, s.Serve(context.Background()))

	var envs []map[string]interface{}
	dec := json.NewDecoder(&out)
	for {
		var env map[string]interface{}
		if err := dec.Decode(&env); err != nil {
			break
		}
		envs = append(envs, env)
	}
	return envs
}

func TestStdioServeDispatchesOneLinePerRequest(t *testing.T) {
	d := NewDispatcher(testContainer(t, newFakeKanban()))
	input := `{"endpoint":"agent","tool":"register_agent","args":{"agent_id":"a1","name":"Alice","role":"backend"}}` + "\n"

	envs := runStdio(t, d, input)
	require.Len(t, envs, 1)
	assert.Equal(t, true, envs[0]["success"])
	assert.Equal(t, "a1", envs[0]["agent_id"])
}

func TestStdioServeDefaultsToAgentEndpointWhenOmitted(t *testing.T) {
	d := NewDispatcher(testContainer(t, newFakeKanban()))
	input := `{"tool":"ping","args":{}}` + "\n"

	envs := runStdio(t, d, input)
	require.Len(t, envs, 1)
	assert.Equal(t, true, envs[0]["success"])
}

func TestStdioServeReturnsMalformedRequestError(t *testing.T) {
	d := NewDispatcher(testContainer(t, newFakeKanban()))
	input := "not json\n"

	envs := runStdio(t, d, input)
	require.Len(t, envs, 1)
	assert.Equal(t, false, envs[0]["success"])
	assert.Contains(t, envs[0]["error"], "malformed request")
}

func TestStdioServeSkipsBlankLinesAndProcessesEachRequest(t *testing.T) {
	d := NewDispatcher(testContainer(t, newFakeKanban()))
	input := "\n" + `{"tool":"ping","args":{}}` + "\n\n" + `{"tool":"list_registered_agents","args":{}}` + "\n"

	envs := runStdio(t, d, input)
	require.Len(t, envs, 2)
	assert.Equal(t, true, envs[0]["success"])
	assert.Equal(t, true, envs[1]["success"])
}
