package simplestorage

import "strings"

// PathSeparator separates segments of a full path.
const PathSeparator = "/"

// JoinContextPath prefixes key with contextPath. Blank context paths leave
// the key unchanged.
func JoinContextPath(contextPath, key string) string {
	contextPath = strings.TrimSpace(contextPath)
	if contextPath == "" || contextPath == PathSeparator {
		return key
	}
	return strings.TrimSuffix(contextPath, PathSeparator) + PathSeparator + strings.TrimPrefix(key, PathSeparator)
}

// NormalizeKey applies the rules every adapter shares: the context path is
// joined in front of key and leading separators are removed.
func NormalizeKey(contextPath, key string) string {
	return strings.TrimLeft(JoinContextPath(contextPath, key), PathSeparator)
}
