// Package memory implements remote.Store in process memory. It behaves like
// an ID-addressed drive: names are not unique within a parent and objects
// may have several parents.
package memory

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/types"
)

const (
	// DefaultRootID names the root directory when Config.RootID is empty.
	DefaultRootID = "root"
	// DirectoryMimeType marks directories.
	DirectoryMimeType = "application/vnd.treefs.folder"
	defaultMimeType   = "application/octet-stream"
)

// Config tunes the store's paging behavior.
type Config struct {
	RootID           string `yaml:"root_id"`
	FindMatchLimit   int    `yaml:"find_match_limit"`
	FindSiblingLimit int    `yaml:"find_sibling_limit"`
	DefaultPageSize  int    `yaml:"default_page_size"`
}

type node struct {
	obj     *types.RemoteObject
	content []byte
}

// Store is an in-memory remote.Store with call accounting and fault
// injection.
type Store struct {
	mu     sync.Mutex
	config Config
	nodes  map[string]*node
	calls  map[string]int
	faults map[string][]error
	now    func() time.Time
}

// New creates an empty store holding only the root directory.
func New(config *Config) *Store {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.RootID == "" {
		cfg.RootID = DefaultRootID
	}
	if cfg.FindMatchLimit <= 0 {
		cfg.FindMatchLimit = 50
	}
	if cfg.FindSiblingLimit <= 0 {
		cfg.FindSiblingLimit = 100
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 100
	}

	s := &Store{
		config: cfg,
		nodes:  make(map[string]*node),
		calls:  make(map[string]int),
		faults: make(map[string][]error),
		now:    time.Now,
	}
	s.nodes[cfg.RootID] = &node{obj: &types.RemoteObject{
		ID:           cfg.RootID,
		Kind:         types.KindDirectory,
		ModifiedTime: s.now(),
		Visibility:   types.VisibilityPrivate,
		MimeType:     DirectoryMimeType,
	}}
	return s
}

// Calls returns how many times call was invoked.
func (s *Store) Calls(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[call]
}

// TotalCalls returns the number of calls of any kind.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = make(map[string]int)
}

// FailNext makes the next invocation of call return err. Faults queue up.
func (s *Store) FailNext(call string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults[call] = append(s.faults[call], err)
}

// enter accounts for a call and pops a pending fault. Callers hold mu.
func (s *Store) enter(call string) error {
	s.calls[call]++
	if queue := s.faults[call]; len(queue) > 0 {
		s.faults[call] = queue[1:]
		return queue[0]
	}
	return nil
}

// AddDirectory creates a directory without counting a call.
func (s *Store) AddDirectory(name, parentID string) *types.RemoteObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(name, parentID, types.KindDirectory, nil, "").Clone()
}

// AddFile creates a file without counting a call.
func (s *Store) AddFile(name, parentID string, content []byte) *types.RemoteObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(name, parentID, types.KindFile, content, "").Clone()
}

// AddParent links id under an additional parent.
func (s *Store) AddParent(id, parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[id]; ok && !n.obj.HasParent(parentID) {
		n.obj.Parents = append(n.obj.Parents, parentID)
	}
}

// Exists reports whether id is stored.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.nodes[id]
	return ok
}

func (s *Store) insert(name, parentID string, kind types.Kind, content []byte, mimeType string) *types.RemoteObject {
	if mimeType == "" {
		mimeType = guessMimeType(name, kind)
	}
	obj := &types.RemoteObject{
		ID:           uuid.NewString(),
		Name:         name,
		Kind:         kind,
		Size:         int64(len(content)),
		ModifiedTime: s.now(),
		Parents:      []string{parentID},
		Visibility:   types.VisibilityPrivate,
		MimeType:     mimeType,
	}
	s.nodes[obj.ID] = &node{obj: obj, content: append([]byte(nil), content...)}
	return obj
}

func guessMimeType(name string, kind types.Kind) string {
	if kind == types.KindDirectory {
		return DirectoryMimeType
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return defaultMimeType
}

// children returns the children of parentID ordered by name, then ID.
func (s *Store) children(parentID string) []*types.RemoteObject {
	var out []*types.RemoteObject
	for _, n := range s.nodes {
		if n.obj.HasParent(parentID) {
			out = append(out, n.obj)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) directory(id string) (*node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}
	if !n.obj.IsDir() {
		return nil, errors.NewError(errors.ErrCodeTypeConflict, "object is not a directory").
			WithComponent("memory-store").WithContext("id", id)
	}
	return n, nil
}

func notFound(id string) error {
	return errors.NewError(errors.ErrCodeObjectNotFound, "object not found").
		WithComponent("memory-store").WithContext("id", id)
}

// FindByName implements remote.Lookup.
func (s *Store) FindByName(ctx context.Context, name, parentID string) (*remote.FindResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallFindByName); err != nil {
		return nil, err
	}
	if _, err := s.directory(parentID); err != nil {
		return nil, err
	}

	all := s.children(parentID)
	seen := make(map[string]struct{})
	result := &remote.FindResult{Exhaustive: len(all) <= s.config.FindSiblingLimit}

	matches := 0
	for _, obj := range all {
		if obj.Name == name && matches < s.config.FindMatchLimit {
			matches++
			seen[obj.ID] = struct{}{}
			result.Candidates = append(result.Candidates, obj.Clone())
		}
	}
	for i, obj := range all {
		if i >= s.config.FindSiblingLimit {
			break
		}
		if _, dup := seen[obj.ID]; dup {
			continue
		}
		seen[obj.ID] = struct{}{}
		result.Candidates = append(result.Candidates, obj.Clone())
	}
	return result, nil
}

// ListChildren implements remote.Lookup. Page tokens are offsets.
func (s *Store) ListChildren(ctx context.Context, parentID, pageToken string, pageSize int) (*remote.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallListChildren); err != nil {
		return nil, err
	}
	if _, err := s.directory(parentID); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = s.config.DefaultPageSize
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, errors.NewError(errors.ErrCodeValidationFailed, "invalid page token").
				WithComponent("memory-store").WithContext("token", pageToken)
		}
		offset = n
	}

	all := s.children(parentID)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}

	page := &remote.Page{}
	for _, obj := range all[offset:end] {
		page.Items = append(page.Items, obj.Clone())
	}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// CreateDirectory implements remote.Lookup.
func (s *Store) CreateDirectory(ctx context.Context, name, parentID string) (*types.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallCreateDirectory); err != nil {
		return nil, err
	}
	if _, err := s.directory(parentID); err != nil {
		return nil, err
	}
	return s.insert(name, parentID, types.KindDirectory, nil, "").Clone(), nil
}

// DeleteObject implements remote.Lookup. Directories take their
// descendants with them unless a descendant has another parent.
func (s *Store) DeleteObject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallDeleteObject); err != nil {
		return err
	}
	if id == s.config.RootID {
		return errors.NewError(errors.ErrCodeProtected, "root cannot be deleted").WithComponent("memory-store")
	}
	if _, ok := s.nodes[id]; !ok {
		return notFound(id)
	}
	s.remove(id)
	return nil
}

func (s *Store) remove(id string) {
	delete(s.nodes, id)
	for _, child := range s.children(id) {
		parents := child.Parents[:0]
		for _, p := range child.Parents {
			if p != id {
				parents = append(parents, p)
			}
		}
		child.Parents = parents
		if len(parents) == 0 {
			s.remove(child.ID)
		}
	}
}

// UpdateParents implements remote.Lookup.
func (s *Store) UpdateParents(ctx context.Context, id, removeParentID, addParentID, newName string) (*types.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallUpdateParents); err != nil {
		return nil, err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}

	if removeParentID != addParentID {
		if _, err := s.directory(addParentID); err != nil {
			return nil, err
		}
		if !n.obj.HasParent(removeParentID) {
			return nil, errors.NewError(errors.ErrCodeValidationFailed, "object is not in the given parent").
				WithComponent("memory-store").WithContext("id", id).WithContext("parent", removeParentID)
		}
		for i, p := range n.obj.Parents {
			if p == removeParentID {
				n.obj.Parents[i] = addParentID
			}
		}
	}
	if newName != "" {
		n.obj.Name = newName
	}
	n.obj.ModifiedTime = s.now()
	return n.obj.Clone(), nil
}

// Get implements remote.Store.
func (s *Store) Get(ctx context.Context, id string) (*types.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallGet); err != nil {
		return nil, err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}
	return n.obj.Clone(), nil
}

// Upload implements remote.Store.
func (s *Store) Upload(ctx context.Context, req remote.UploadRequest) (*types.RemoteObject, error) {
	var content []byte
	if req.Content != nil {
		var err error
		if content, err = io.ReadAll(req.Content); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidationFailed, "failed to read upload content")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallUpload); err != nil {
		return nil, err
	}

	if req.ID == "" {
		if _, err := s.directory(req.ParentID); err != nil {
			return nil, err
		}
		return s.insert(req.Name, req.ParentID, types.KindFile, content, req.MimeType).Clone(), nil
	}

	n, ok := s.nodes[req.ID]
	if !ok {
		return nil, notFound(req.ID)
	}
	if n.obj.IsDir() {
		return nil, errors.NewError(errors.ErrCodeTypeConflict, "cannot upload into a directory").
			WithComponent("memory-store").WithContext("id", req.ID)
	}
	n.content = content
	n.obj.Size = int64(len(content))
	n.obj.ModifiedTime = s.now()
	if req.MimeType != "" {
		n.obj.MimeType = req.MimeType
	}
	return n.obj.Clone(), nil
}

// Download implements remote.Store.
func (s *Store) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallDownload); err != nil {
		return nil, err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}
	if n.obj.IsDir() {
		return nil, errors.NewError(errors.ErrCodeTypeConflict, "cannot download a directory").
			WithComponent("memory-store").WithContext("id", id)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), n.content...))), nil
}

// Copy implements remote.Store.
func (s *Store) Copy(ctx context.Context, id, name, parentID string) (*types.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallCopy); err != nil {
		return nil, err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}
	if n.obj.IsDir() {
		return nil, errors.NewError(errors.ErrCodeTypeConflict, "directories cannot be copied").
			WithComponent("memory-store").WithContext("id", id)
	}
	if _, err := s.directory(parentID); err != nil {
		return nil, err
	}
	return s.insert(name, parentID, types.KindFile, n.content, n.obj.MimeType).Clone(), nil
}

// SetVisibility implements remote.Store.
func (s *Store) SetVisibility(ctx context.Context, id string, visibility types.Visibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(remote.CallSetVisibility); err != nil {
		return err
	}
	n, ok := s.nodes[id]
	if !ok {
		return notFound(id)
	}
	n.obj.Visibility = visibility
	return nil
}

// RootID implements remote.Store.
func (s *Store) RootID() string {
	return s.config.RootID
}

// HealthCheck implements remote.Store.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enter(remote.CallHealthCheck)
}

var _ remote.Store = (*Store)(nil)
