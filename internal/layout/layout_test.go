// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ManuGH/dosemux/internal/validate"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayout(t *testing.T) *Layout {
	t.Helper()
	l := New(1000, 800)
	require.NoError(t, l.NewGroup("A", "", Exposure{}))
	require.NoError(t, l.NewGroup("B", "#00FF00", Exposure{Mode: ModeAbsolute, Value: 1500}))
	return l
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, -1)
	assert.Equal(t, DefaultWidth, l.Width)
	assert.Equal(t, DefaultHeight, l.Height)
	assert.NoError(t, l.Validate())
}

func TestGroups(t *testing.T) {
	l := newTestLayout(t)

	g, ok := l.Group("A")
	require.True(t, ok)
	assert.Equal(t, palette[0], g.Color)
	assert.Equal(t, DefaultExposure(), g.Exposure)

	g, _ = l.Group("B")
	assert.Equal(t, "#00ff00", g.Color)

	assert.ErrorIs(t, l.NewGroup("A", "", Exposure{}), ErrGroupExists)
	assert.ErrorIs(t, l.NewGroup("C", "red", Exposure{}), ErrInvalidColor)
	assert.ErrorIs(t, l.NewGroup("C", "", Exposure{Mode: "fast", Value: 1}), ErrInvalidExposure)
	assert.ErrorIs(t, l.SetGroupColor("missing", "#000000"), ErrGroupNotFound)
	assert.ErrorIs(t, l.SetGroupExposure("A", Exposure{Mode: ModeScale, Value: -1}), ErrInvalidExposure)

	require.NoError(t, l.SetGroupExposure("A", Exposure{Mode: ModeScale, Value: 1.5}))
	g, _ = l.Group("A")
	assert.Equal(t, 3000.0, g.Exposure.Milliseconds(2000))
}

func TestRenameGroup_MovesComponents(t *testing.T) {
	l := newTestLayout(t)
	id, err := l.AddComponent("A", 0, 0, 0, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, l.RenameGroup("A", "B"), ErrGroupExists)
	require.NoError(t, l.RenameGroup("A", "Z"))
	c, _ := l.Component(id)
	assert.Equal(t, "Z", c.Group)
	_, ok := l.Group("A")
	assert.False(t, ok)
}

func TestDeleteGroup_RemovesComponents(t *testing.T) {
	l := newTestLayout(t)
	_, err := l.AddComponent("A", 0, 0, 10, 10)
	require.NoError(t, err)
	keep, err := l.AddComponent("B", 20, 20, 10, 10)
	require.NoError(t, err)

	require.NoError(t, l.DeleteGroup("A"))
	assert.Len(t, l.Groups, 1)
	require.Len(t, l.Components, 1)
	assert.Equal(t, keep, l.Components[0].ID)
	assert.ErrorIs(t, l.DeleteGroup("A"), ErrGroupNotFound)
}

func TestChangeGroup(t *testing.T) {
	l := newTestLayout(t)
	id, _ := l.AddComponent("A", 0, 0, 10, 10)
	require.NoError(t, l.ChangeGroup([]int{id}, "B"))
	assert.Len(t, l.Members("B"), 1)
	assert.ErrorIs(t, l.ChangeGroup([]int{id}, "nope"), ErrGroupNotFound)
	assert.ErrorIs(t, l.ChangeGroup(nil, "A"), ErrEmptySelection)
	assert.ErrorIs(t, l.ChangeGroup([]int{99}, "A"), ErrComponentNotFound)
}

func TestAddAndDeleteComponents(t *testing.T) {
	l := newTestLayout(t)
	id1, err := l.AddComponent("A", 5, 6, 0, 0)
	require.NoError(t, err)
	id2, _ := l.AddComponent("A", 50, 60, 20, 30)
	assert.Equal(t, id1+1, id2)

	c, ok := l.Component(id1)
	require.True(t, ok)
	assert.Equal(t, DefaultComponentWidth, c.Width)
	assert.Equal(t, "X: 5, Y: 6, Width: 100, Height: 100, Group: A", Describe(c))

	_, err = l.AddComponent("missing", 0, 0, 0, 0)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	require.NoError(t, l.DeleteComponents([]int{id1}))
	_, ok = l.Component(id1)
	assert.False(t, ok)
	assert.ErrorIs(t, l.DeleteComponents([]int{id1}), ErrComponentNotFound)
}

func TestTile_ClipsToCanvas(t *testing.T) {
	l := newTestLayout(t)
	ids, err := l.Tile(TileOptions{Group: "A", X: 700, Y: 0, Rows: 2, Cols: 4, Width: 100, Height: 100, GapX: 10, GapY: 10})
	require.NoError(t, err)
	// Columns at 700, 810 fit in 1000; 920 and 1030 do not.
	assert.Len(t, ids, 4)

	var xs []int
	for _, c := range l.Components {
		xs = append(xs, c.X)
	}
	if diff := cmp.Diff([]int{700, 810, 700, 810}, xs); diff != "" {
		t.Errorf("tile columns (-want +got):\n%s", diff)
	}
	assert.NoError(t, l.Validate())

	_, err = l.Tile(TileOptions{Group: "A", Rows: 0, Cols: 1})
	assert.Error(t, err)
}

func TestAlign(t *testing.T) {
	l := newTestLayout(t)
	a, _ := l.AddComponent("A", 10, 40, 50, 50)
	b, _ := l.AddComponent("A", 30, 20, 100, 10)
	ids := []int{a, b}

	require.NoError(t, l.AlignLeft(ids))
	ca, _ := l.Component(a)
	cb, _ := l.Component(b)
	assert.Equal(t, 10, ca.X)
	assert.Equal(t, 10, cb.X)

	require.NoError(t, l.AlignRight(ids))
	ca, _ = l.Component(a)
	cb, _ = l.Component(b)
	assert.Equal(t, 110, ca.X+ca.Width)
	assert.Equal(t, 110, cb.X+cb.Width)

	require.NoError(t, l.AlignTop(ids))
	ca, _ = l.Component(a)
	cb, _ = l.Component(b)
	assert.Equal(t, 20, ca.Y)
	assert.Equal(t, 20, cb.Y)

	require.NoError(t, l.AlignBottom(ids))
	ca, _ = l.Component(a)
	cb, _ = l.Component(b)
	assert.Equal(t, 70, ca.Y+ca.Height)
	assert.Equal(t, 70, cb.Y+cb.Height)

	require.NoError(t, l.SetX(ids, 3))
	require.NoError(t, l.SetY([]int{a}, 4))
	ca, _ = l.Component(a)
	assert.Equal(t, 3, ca.X)
	assert.Equal(t, 4, ca.Y)

	assert.ErrorIs(t, l.AlignLeft(nil), ErrEmptySelection)
}

func TestSelectInArea(t *testing.T) {
	l := newTestLayout(t)
	inside, _ := l.AddComponent("A", 10, 10, 20, 20)
	_, _ = l.AddComponent("B", 25, 25, 20, 20)

	assert.Equal(t, []int{inside}, l.SelectInArea(0, 0, 30, 30))
	assert.Equal(t, []int{inside}, l.SelectInArea(30, 30, 0, 0), "corners in any order")
	assert.Len(t, l.SelectInArea(0, 0, 100, 100), 2)
	assert.Empty(t, l.SelectInArea(500, 500, 600, 600))
}

func TestValidate(t *testing.T) {
	l := newTestLayout(t)
	l.Components = append(l.Components,
		Component{ID: 1, X: 990, Y: 0, Width: 20, Height: 20, Group: "A"},
		Component{ID: 1, X: 0, Y: 0, Width: 0, Height: 20, Group: "ghost"},
	)
	l.Groups[0].Color = "blue"

	err := l.Validate()
	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)

	var fields []string
	for _, e := range verr.Errors() {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"groups[0].color",
		"components[0]",
		"components[1].id",
		"components[1].width",
		"components[1].group",
	}, fields)
}

func TestValidate_CanvasBounds(t *testing.T) {
	for _, size := range [][2]int{{0, 100}, {100, -1}, {MaxCanvasSide + 1, 100}, {100000, 100000}} {
		l, err := Parse(strings.NewReader(fmt.Sprintf(`{"width":%d,"height":%d}`, size[0], size[1])))
		require.NoError(t, err)
		var verr validate.ValidationError
		require.ErrorAs(t, l.Validate(), &verr, "%v", size)
	}

	l, err := Parse(strings.NewReader(fmt.Sprintf(`{"width":%d,"height":1}`, MaxCanvasSide)))
	require.NoError(t, err)
	assert.NoError(t, l.Validate())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	l := newTestLayout(t)
	_, err := l.Tile(TileOptions{Group: "B", Rows: 2, Cols: 2})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, l.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(l, loaded); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"width":10,"height":10,"colour":"x"}`), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown field"))

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"width":10,"height":10,"components":[{"id":1,"width":5,"height":5,"group":"x"}]}`), 0o600))
	_, err = Load(invalid)
	var verr validate.ValidationError
	assert.ErrorAs(t, err, &verr)
}
