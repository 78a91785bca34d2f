package etcd

import (
	"strings"

	"github.com/arloliu/succession/types"
)

// validatePath checks path is absolute with no empty elements.
func validatePath(op, path string) error {
	if path == "" || path[0] != '/' {
		return types.NewStoreError(op, path, types.CodeBadArguments, "path must start with /")
	}
	if path == "/" {
		return nil
	}
	if strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return types.NewStoreError(op, path, types.CodeBadArguments, "empty path element")
	}

	return nil
}

// key maps a node path to its etcd key.
func (s *Store) key(path string) string {
	return s.prefix + path
}

// childPrefix is the key prefix shared by path's descendants.
func (s *Store) childPrefix(path string) string {
	if path == "/" {
		return s.prefix + "/"
	}

	return s.prefix + path + "/"
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
