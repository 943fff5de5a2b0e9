package scene

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

const livingScene = `
0:
  name: Off
  actions:
    - {item: living.light, value: false}
    - {item: living.dimmer, value: 0}
1:
  name: Evening
  actions:
    - {item: living.light, value: true}
    - {item: living.dimmer, value: 40, learn: true}
2:
  name: Single
  actions: {item: living.light, value: true}
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func newTestTree(t *testing.T, dir string) (*item.Tree, *Manager) {
	t.Helper()
	m := New(dir, nil)
	tree := item.NewTree(item.Deps{}, m)
	require.NoError(t, tree.Build(context.Background(), []item.Node{
		{Key: "living", Children: []item.Node{
			{Key: "scene", Config: item.Config{Type: item.TypeScene, EnforceUpdates: true}},
			{Key: "light", Config: item.Config{Type: item.TypeBool}},
			{Key: "dimmer", Config: item.Config{Type: item.TypeNum}},
		}},
	}))
	m.Bind(tree)
	return tree, m
}

func get(t *testing.T, tree *item.Tree, path string) *item.Item {
	t.Helper()
	it, ok := tree.Get(path)
	require.True(t, ok, path)
	return it
}

func TestApplyState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", livingScene)
	tree, m := newTestTree(t, dir)

	assert.Equal(t, []string{"living.scene"}, m.Scenes())

	require.NoError(t, get(t, tree, "living.scene").Change(1, item.CallerAPI, "", ""))

	light := get(t, tree, "living.light")
	assert.Equal(t, true, light.Value())
	assert.Equal(t, "Scene:living.scene", light.ChangedBy())
	assert.Equal(t, 40.0, get(t, tree, "living.dimmer").Value())

	require.NoError(t, get(t, tree, "living.scene").Change(0, item.CallerAPI, "", ""))
	assert.Equal(t, false, light.Value())
	assert.Equal(t, 0.0, get(t, tree, "living.dimmer").Value())
}

func TestSingleActionMapping(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", livingScene)
	tree, m := newTestTree(t, dir)

	info, err := m.Info("living.scene")
	require.NoError(t, err)
	require.Len(t, info.States[2].Actions, 1)

	require.NoError(t, get(t, tree, "living.scene").Change(2, item.CallerAPI, "", ""))
	assert.Equal(t, true, get(t, tree, "living.light").Value())
}

func TestLearnState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", livingScene)
	tree, m := newTestTree(t, dir)

	dimmer := get(t, tree, "living.dimmer")
	require.NoError(t, dimmer.Change(75, item.CallerAPI, "panel", ""))

	// 129 learns state 1.
	require.NoError(t, get(t, tree, "living.scene").Change(129, item.CallerAPI, "", ""))

	data, err := os.ReadFile(filepath.Join(dir, "living.scene_learned.yaml"))
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, yaml.Unmarshal(data, &saved))
	assert.Equal(t, map[string]any{"1#living.dimmer": 75}, saved)

	require.NoError(t, dimmer.Change(5, item.CallerAPI, "panel", ""))
	require.NoError(t, m.Apply("living.scene", 1))
	assert.Equal(t, 75.0, dimmer.Value())

	info, err := m.Info("living.scene")
	require.NoError(t, err)
	assert.Contains(t, info.Learned, "1#living.dimmer")
}

func TestLearnedValuesReloaded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", livingScene)
	writeFile(t, dir, "living.scene_learned.yaml", "\"1#living.dimmer\": 60\n")
	tree, m := newTestTree(t, dir)

	require.NoError(t, m.Apply("living.scene", 1))
	assert.Equal(t, 60.0, get(t, tree, "living.dimmer").Value())
}

func TestInvalidAndUndefinedStates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", livingScene)
	tree, m := newTestTree(t, dir)
	scene := get(t, tree, "living.scene")

	// Undefined states are ignored.
	require.NoError(t, scene.Change(7, item.CallerAPI, "", ""))
	assert.Equal(t, false, get(t, tree, "living.light").Value())
	assert.Equal(t, "Init:", get(t, tree, "living.light").ChangedBy())

	// Out of range values fail the callback but the commit stands.
	require.NoError(t, scene.Change(100, item.CallerAPI, "", ""))
	assert.Equal(t, int64(100), scene.Value())

	err := m.Learn("living.scene", 9)
	assert.ErrorIs(t, err, ErrStateNotFound)

	err = m.Apply("nowhere", 0)
	assert.ErrorIs(t, err, ErrSceneNotFound)
}

func TestMissingTargetSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", `
0:
  name: Partial
  actions:
    - {item: living.gone, value: 1}
    - {item: living.light, value: true}
`)
	tree, m := newTestTree(t, dir)

	require.NoError(t, m.Apply("living.scene", 0))
	assert.Equal(t, true, get(t, tree, "living.light").Value())

	err := m.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, item.ErrItemNotFound)
}

func TestSceneWithoutFile(t *testing.T) {
	_, m := newTestTree(t, t.TempDir())
	assert.Empty(t, m.Scenes())
	assert.NoError(t, m.Validate())
}

func TestStateOutOfRangeInFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", "64:\n  name: Bad\n  actions: []\n")
	_, m := newTestTree(t, dir)
	assert.Empty(t, m.Scenes())
}

func TestUnbound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "living.scene.yaml", livingScene)
	m := New(dir, nil)
	tree := item.NewTree(item.Deps{}, m)
	require.NoError(t, tree.Build(context.Background(), []item.Node{
		{Key: "living", Children: []item.Node{
			{Key: "scene", Config: item.Config{Type: item.TypeScene}},
		}},
	}))

	assert.ErrorIs(t, m.Apply("living.scene", 0), ErrUnbound)
}
