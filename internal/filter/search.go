package filter

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/marcus/trellis/internal/apperr"
)

// Search returns a predicate matching tasks whose title or description
// contains query, ignoring ASCII case.
func Search(query string) (sq.Sqlizer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	pattern := "%" + escapeLike(query) + "%"
	return sq.Or{
		sq.Expr(col("title")+` LIKE ? ESCAPE '\'`, pattern),
		sq.Expr(col("description")+` LIKE ? ESCAPE '\'`, pattern),
	}, nil
}
