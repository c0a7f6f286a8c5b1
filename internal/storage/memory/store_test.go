package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
)

func TestStore_FindByName(t *testing.T) {
	ctx := context.Background()
	s := New(&Config{FindSiblingLimit: 3})

	docs := s.AddDirectory("docs", s.RootID())
	s.AddFile("a.txt", s.RootID(), []byte("a"))
	s.AddFile("b.txt", s.RootID(), []byte("b"))

	res, err := s.FindByName(ctx, "docs", s.RootID())
	require.NoError(t, err)
	assert.True(t, res.Exhaustive)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, docs.ID, res.Candidates[0].ID)
	assert.Equal(t, 1, s.Calls(remote.CallFindByName))

	s.AddFile("c.txt", s.RootID(), nil)
	res, err = s.FindByName(ctx, "docs", s.RootID())
	require.NoError(t, err)
	assert.False(t, res.Exhaustive)
	assert.Equal(t, docs.ID, res.Candidates[0].ID)

	ids := map[string]bool{}
	for _, c := range res.Candidates {
		assert.False(t, ids[c.ID], "duplicate candidate %s", c.ID)
		ids[c.ID] = true
	}
}

func TestStore_ListChildrenPaging(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	for i := 0; i < 7; i++ {
		s.AddFile(fmt.Sprintf("f%d", i), s.RootID(), nil)
	}

	var names []string
	token := ""
	pages := 0
	for {
		page, err := s.ListChildren(ctx, s.RootID(), token, 3)
		require.NoError(t, err)
		pages++
		for _, item := range page.Items {
			names = append(names, item.Name)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"f0", "f1", "f2", "f3", "f4", "f5", "f6"}, names)

	_, err := s.ListChildren(ctx, s.RootID(), "bogus", 3)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
}

func TestStore_CreateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	a, err := s.CreateDirectory(ctx, "a", s.RootID())
	require.NoError(t, err)
	assert.True(t, a.IsDir())
	b, err := s.CreateDirectory(ctx, "b", a.ID)
	require.NoError(t, err)
	f := s.AddFile("f", b.ID, []byte("x"))

	require.NoError(t, s.DeleteObject(ctx, a.ID))
	assert.False(t, s.Exists(b.ID))
	assert.False(t, s.Exists(f.ID))

	err = s.DeleteObject(ctx, a.ID)
	assert.True(t, errors.IsNotFound(err))

	err = s.DeleteObject(ctx, s.RootID())
	assert.Equal(t, errors.ErrCodeProtected, errors.CodeOf(err))

	f2 := s.AddFile("g", s.RootID(), nil)
	_, err = s.CreateDirectory(ctx, "x", f2.ID)
	assert.Equal(t, errors.ErrCodeTypeConflict, errors.CodeOf(err))
}

func TestStore_DeleteKeepsMultiParentChildren(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	a := s.AddDirectory("a", s.RootID())
	b := s.AddDirectory("b", s.RootID())
	shared := s.AddFile("shared", a.ID, nil)
	s.AddParent(shared.ID, b.ID)

	require.NoError(t, s.DeleteObject(ctx, a.ID))

	obj, err := s.Get(ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, obj.Parents)
}

func TestStore_UpdateParents(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	a := s.AddDirectory("a", s.RootID())
	f := s.AddFile("f", s.RootID(), nil)

	moved, err := s.UpdateParents(ctx, f.ID, s.RootID(), a.ID, "g")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, moved.Parents)
	assert.Equal(t, "g", moved.Name)

	renamed, err := s.UpdateParents(ctx, f.ID, a.ID, a.ID, "h")
	require.NoError(t, err)
	assert.Equal(t, "h", renamed.Name)

	_, err = s.UpdateParents(ctx, f.ID, s.RootID(), a.ID, "")
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
}

func TestStore_UploadDownloadCopy(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	obj, err := s.Upload(ctx, remote.UploadRequest{Name: "notes.json", ParentID: s.RootID(), Content: strings.NewReader("hello")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "application/json", obj.MimeType)

	obj, err = s.Upload(ctx, remote.UploadRequest{ID: obj.ID, Content: strings.NewReader("hello again")})
	require.NoError(t, err)
	assert.Equal(t, int64(11), obj.Size)

	cp, err := s.Copy(ctx, obj.ID, "copy.txt", s.RootID())
	require.NoError(t, err)
	assert.NotEqual(t, obj.ID, cp.ID)

	rc, err := s.Download(ctx, cp.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello again", string(data))

	require.NoError(t, s.SetVisibility(ctx, cp.ID, types.VisibilityPublic))
	got, err := s.Get(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityPublic, got.Visibility)
}

func TestStore_FaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	boom := errors.NewError(errors.ErrCodeTransientRemote, "injected")
	s.FailNext(remote.CallListChildren, boom)

	_, err := s.ListChildren(ctx, s.RootID(), "", 10)
	assert.ErrorIs(t, err, errors.ErrTransient)

	_, err = s.ListChildren(ctx, s.RootID(), "", 10)
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Calls(remote.CallListChildren))

	s.ResetCalls()
	assert.Zero(t, s.TotalCalls())
}
