package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteObjectClone(t *testing.T) {
	orig := &RemoteObject{ID: "f1", Name: "a.txt", Kind: KindFile, Parents: []string{"root"}}
	c := orig.Clone()

	c.Parents[0] = "other"
	c.Name = "b.txt"

	assert.Equal(t, "root", orig.Parents[0])
	assert.Equal(t, "a.txt", orig.Name)
	assert.Nil(t, (*RemoteObject)(nil).Clone())
}

func TestRemoteObjectKind(t *testing.T) {
	dir := &RemoteObject{Kind: KindDirectory, Parents: []string{"p1", "p2"}}
	assert.True(t, dir.IsDir())
	assert.True(t, dir.HasParent("p2"))
	assert.False(t, dir.HasParent("p3"))
	assert.False(t, (&RemoteObject{Kind: KindFile}).IsDir())
	assert.False(t, (*RemoteObject)(nil).IsDir())
}

func TestParseVisibility(t *testing.T) {
	v, ok := ParseVisibility("public")
	assert.True(t, ok)
	assert.Equal(t, VisibilityPublic, v)

	_, ok = ParseVisibility("world")
	assert.False(t, ok)
}

func TestNopMetrics(t *testing.T) {
	var m MetricsCollector = NopMetrics{}
	m.RecordOperation("stat", 0, true)
	m.RecordError("stat", nil)
}
