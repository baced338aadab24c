package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashText hashes text after collapsing whitespace so re-extracted copies of
// the same document hash identically.
func HashText(input string) string {
	return HashString(strings.Join(strings.Fields(input), " "))
}
