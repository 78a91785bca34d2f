package natskv

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/arloliu/succession/types"
)

// rootKey is the tree key of "/".
const rootKey = "root"

var segmentPattern = regexp.MustCompile(`^[-_=A-Za-z0-9]+$`)

// dirRecord is the tree entry of one persistent node. It lists the node's
// children with the owning session ID, empty for persistent children.
type dirRecord struct {
	Seq      uint64            `json:"seq"`
	Children map[string]string `json:"children"`
}

func decodeRecord(data []byte) (dirRecord, error) {
	var rec dirRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return dirRecord{}, fmt.Errorf("decode tree record: %w", err)
		}
	}
	if rec.Children == nil {
		rec.Children = make(map[string]string)
	}

	return rec, nil
}

func (r dirRecord) encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode tree record: %w", err)
	}

	return data, nil
}

// treeKey maps a node path to its KV key: "/" is "root", "/a/b" is "root.a.b".
func treeKey(path string) string {
	if path == "/" {
		return rootKey
	}

	return rootKey + strings.ReplaceAll(path, "/", ".")
}

// validatePath checks path is absolute and every element is a valid KV token.
func validatePath(op, path string) error {
	if path == "" || path[0] != '/' {
		return types.NewStoreError(op, path, types.CodeBadArguments, "path must start with /")
	}
	if path == "/" {
		return nil
	}

	for _, seg := range strings.Split(path[1:], "/") {
		if !segmentPattern.MatchString(seg) {
			return types.NewStoreError(op, path, types.CodeBadArguments,
				fmt.Sprintf("invalid path element %q", seg))
		}
	}

	return nil
}

func split(path string) (parent, name string) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/", path[i+1:]
	}

	return path[:i], path[i+1:]
}

func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}

	return parent + "/" + name
}
