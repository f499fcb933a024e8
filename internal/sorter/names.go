package sorter

import (
	"fmt"
	"path"
	"strings"
)

// uniqueNames hands out names that have not been used yet, appending _1, _2,
// ... before the extension on collision.
type uniqueNames struct {
	used map[string]struct{}
}

func newUniqueNames() *uniqueNames {
	return &uniqueNames{used: make(map[string]struct{})}
}

func (u *uniqueNames) claim(name string) string {
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		key := strings.ToLower(candidate)
		if _, taken := u.used[key]; !taken {
			u.used[key] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}
}
