package core

import "github.com/seckatie/opinionwatch/internal/core/db"

// Diff returns the candidates whose URL is not in seen, in candidate order.
func Diff(candidates, seen []db.Opinion) []db.Opinion {
	known := db.SeenURLs(seen)
	var out []db.Opinion
	for _, c := range candidates {
		if _, ok := known[c.URL]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
