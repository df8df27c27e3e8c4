package api

import "strings"

func strReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
