package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_Unset(t *testing.T) {
	e, err := ParseEnv(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Env{Rank: -1, Ranks: -1}, e)

	m := Defaults()
	e.Apply(m)
	assert.Equal(t, Defaults(), m)
}

func TestParseEnv_Overrides(t *testing.T) {
	e, err := ParseEnv(map[string]string{
		"MESHFLOW_RANK":          "0",
		"MESHFLOW_RANKS":         "3",
		"MESHFLOW_REDUCER":       "socketio",
		"MESHFLOW_REDUCER_ADDR":  "10.0.0.1:9000",
		"MESHFLOW_SUMMARY_PATH":  "/tmp/out.txt",
		"MESHFLOW_UNRELATED_VAR": "x",
	})
	require.NoError(t, err)

	m := Defaults()
	m.Parallel.Rank = 2
	e.Apply(m)
	assert.Equal(t, 0, m.Parallel.Rank)
	assert.Equal(t, 3, m.Parallel.Ranks)
	assert.Equal(t, "socketio", m.Parallel.Mode)
	assert.Equal(t, "10.0.0.1:9000", m.Parallel.Addr)
	assert.Equal(t, "/tmp/out.txt", m.Driver.SummaryPath)
	assert.Equal(t, time.Minute, m.Parallel.Timeout)
}

func TestParseEnv_Invalid(t *testing.T) {
	_, err := ParseEnv(map[string]string{"MESHFLOW_RANKS": "many"})
	assert.ErrorContains(t, err, "parse env")
}

func TestApply_FillsMissingSections(t *testing.T) {
	m := &Model{}
	Env{Rank: -1, Ranks: 2}.Apply(m)
	require.NotNil(t, m.Parallel)
	require.NotNil(t, m.Driver)
	assert.Equal(t, 2, m.Parallel.Ranks)
	assert.Equal(t, "summary.txt", m.Driver.SummaryPath)
}

func TestModel_Package(t *testing.T) {
	m := &Model{Packages: []*Package{{Name: "a"}, {Name: "b"}}}
	assert.Equal(t, "b", m.Package("b").Name)
	assert.Nil(t, m.Package("c"))
}
