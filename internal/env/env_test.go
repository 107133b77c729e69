package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePrecedence(t *testing.T) {
	t.Setenv("LAUNCHER_TEST_BASE", "os")
	t.Setenv("LAUNCHER_TEST_OVERRIDE", "os")

	e := New()
	e.FromOS()
	e.Set("LAUNCHER_TEST_OVERRIDE", "global")
	e.Set("LAUNCHER_TEST_GLOBAL", "g")

	got := toMap(e.Merge([]string{"LAUNCHER_TEST_GLOBAL=daemon", "BROKEN", "=nokey"}))
	assert.Equal(t, "os", got["LAUNCHER_TEST_BASE"])
	assert.Equal(t, "global", got["LAUNCHER_TEST_OVERRIDE"])
	assert.Equal(t, "daemon", got["LAUNCHER_TEST_GLOBAL"])
	_, ok := got["BROKEN"]
	assert.False(t, ok)
}

func TestMergeExpandsBraces(t *testing.T) {
	e := New()
	e.base = Var{"HOME": "/home/vgl"}
	got := toMap(e.Merge([]string{"APPDATA=${HOME}/.vgld", "PASS=a$b", "OPEN=${HOME"}))
	assert.Equal(t, "/home/vgl/.vgld", got["APPDATA"])
	assert.Equal(t, "a$b", got["PASS"])
	assert.Equal(t, "${HOME", got["OPEN"])
}

func TestMergeSorted(t *testing.T) {
	e := New()
	e.base = Var{"B": "2", "A": "1"}
	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, e.Merge([]string{"C=3"}))
}

func toMap(kvs []string) map[string]string {
	return parse(kvs)
}
