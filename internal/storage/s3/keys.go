package s3

import (
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/objectfs/treefs/pkg/types"
)

// Key layout under the configured prefix:
//
//	tree/<parentID>/<escaped name>/<id>   object body, one per parent link
//	ids/<id>                              body is the object's tree key
//
// Directory IDs never change, so moving a directory rewrites one tree key
// and its descendants stay where they are.
const (
	treeDir    = "tree/"
	locatorDir = "ids/"

	dirIDPrefix  = "d-"
	fileIDPrefix = "f-"
)

type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return keyspace{prefix: prefix}
}

// children is the listing prefix for every child of parentID.
func (k keyspace) children(parentID string) string {
	return k.prefix + treeDir + parentID + "/"
}

// named is the listing prefix for the children of parentID called name.
func (k keyspace) named(parentID, name string) string {
	return k.children(parentID) + url.PathEscape(name) + "/"
}

func (k keyspace) object(parentID, name, id string) string {
	return k.named(parentID, name) + id
}

func (k keyspace) locator(id string) string {
	return k.prefix + locatorDir + id
}

// parse splits a tree key. ok is false for keys outside the layout.
func (k keyspace) parse(key string) (parentID, name, id string, ok bool) {
	rest, found := strings.CutPrefix(key, k.prefix+treeDir)
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	name, err := url.PathUnescape(parts[1])
	if err != nil || name == "" {
		return "", "", "", false
	}
	return parts[0], name, parts[2], true
}

func newID(kind types.Kind) string {
	if kind == types.KindDirectory {
		return dirIDPrefix + uuid.NewString()
	}
	return fileIDPrefix + uuid.NewString()
}

func kindOf(id string) types.Kind {
	if strings.HasPrefix(id, dirIDPrefix) {
		return types.KindDirectory
	}
	return types.KindFile
}
