package naming

import (
	"fmt"
	"path"
	"strings"

	"github.com/bft-labs/fieldlog/internal/domain"
)

// Counter tokens expanded by storage devices.
const (
	TokenNum  = "NUM"
	TokenANum = "ANUM"
)

const (
	maxNum    = 99
	maxANum   = 26 * 26
	maxSuffix = 999
)

func anum(i int) string {
	return string([]byte{byte('a' + i/26), byte('a' + i%26)})
}

// NextFree returns the first name derived from name for which exists is
// false. Names with ANUM or NUM use *counter as the start of their sequence
// and advance it past the returned name. Other names get a -N suffix before
// the extension when they are taken.
func NextFree(name string, counter *int, exists func(string) bool) (string, error) {
	switch {
	case strings.Contains(name, TokenANum):
		for i := *counter; i < maxANum; i++ {
			c := strings.Replace(name, TokenANum, anum(i), 1)
			if !exists(c) {
				*counter = i + 1
				return c, nil
			}
		}
	case strings.Contains(name, TokenNum):
		for i := *counter; i < maxNum; i++ {
			c := strings.Replace(name, TokenNum, fmt.Sprintf("%02d", i+1), 1)
			if !exists(c) {
				*counter = i + 1
				return c, nil
			}
		}
	default:
		if !exists(name) {
			return name, nil
		}
		ext := path.Ext(name)
		base := strings.TrimSuffix(name, ext)
		for i := 1; i <= maxSuffix; i++ {
			c := fmt.Sprintf("%s-%d%s", base, i, ext)
			if !exists(c) {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", name, domain.ErrNameSpaceExhausted)
}
