// Package disposable holds the embedded set of domains known to back
// throwaway mailbox services.
package disposable

import (
	_ "embed"
	"strings"
)

//go:embed list.txt
var rawList string

var domainSet map[string]struct{}

func init() {
	lines := strings.Split(rawList, "\n")
	domainSet = make(map[string]struct{}, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domainSet[strings.ToLower(line)] = struct{}{}
	}
}
