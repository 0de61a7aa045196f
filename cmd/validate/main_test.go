package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReport_SampleGame(t *testing.T) {
	rep, err := buildReport(filepath.Join("..", "..", "data", "game.yaml"))
	require.NoError(t, err)

	assert.Zero(t, rep.Problems)
	assert.Equal(t, "notebook", rep.Notebook)
	assert.Equal(t, 3, rep.Collections["station"])
	assert.Contains(t, rep.Ephemeral, "newdraw_weather")

	require.Len(t, rep.Loops, 3)
	assert.True(t, rep.Loops[0].AlwaysValid)
	assert.True(t, rep.Loops[1].AlwaysValid)
	assert.False(t, rep.Loops[2].AlwaysValid)
	assert.Equal(t, []string{"warned_last_car"}, rep.Loops[2].Flags)
}

func writeGame(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	manifest := "collections:\n  - name: main\n    file: main.csv\n"
	rows := "id,minLoop,required,text,added\n" +
		"start,1,,Hello,\n" +
		"locked,2,key,A door,\n" +
		"short,row\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.yaml"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.csv"), []byte(rows), 0o644))
	return filepath.Join(dir, "game.yaml")
}

func TestBuildReport_Problems(t *testing.T) {
	rep, err := buildReport(writeGame(t))
	require.NoError(t, err)

	assert.Len(t, rep.Rejected, 1)
	require.Len(t, rep.Unsatisfiable, 1)
	assert.Contains(t, rep.Unsatisfiable[0], "key")
	assert.Equal(t, 2, rep.Problems)

	var text bytes.Buffer
	require.NoError(t, rep.write(&text, "text"))
	assert.Contains(t, text.String(), "Rejected rows (1)")
	assert.Contains(t, text.String(), "2 problems found.")

	var js bytes.Buffer
	require.NoError(t, rep.write(&js, "json"))
	var decoded report
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Problems)

	assert.Error(t, rep.write(&text, "yaml"))
}

func TestRootCmd_Strict(t *testing.T) {
	path := writeGame(t)
	t.Cleanup(func() {
		strictFlag = false
		formatFlag = "text"
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{path})
	assert.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "LOOP")

	rootCmd.SetArgs([]string{"--strict", path})
	assert.Error(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, rootCmd.Execute())
}
