package store

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"jobmate/jobhunt/internal/model"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// viewColumns is the column list scanned by scanView, in order.
var viewColumns = []string{
	"p.id", "p.external_id", "p.title", "p.company", "p.location",
	"p.description", "p.url", "p.salary_min", "p.salary_max", "p.source",
	"p.search_location", "p.date_posted", "p.date_scraped",
	"t.id", "t.is_favorite", "t.status::text", "t.notes", "t.applied_date", "t.updated_at",
}

const postingJoin = "posting_tracking t ON t.posting_id = p.id"

func applyFilter(b sq.SelectBuilder, f model.PostingFilter) sq.SelectBuilder {
	if f.Location != "" {
		b = b.Where(sq.Eq{"p.search_location": f.Location})
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		b = b.Where(sq.Or{
			sq.ILike{"p.title": pattern},
			sq.ILike{"p.company": pattern},
			sq.ILike{"p.description": pattern},
		})
	}
	if f.Status != "" {
		b = b.Where(sq.Expr("COALESCE(t.status::text, 'new') = ?", string(f.Status)))
	}
	if f.FavoriteOnly {
		b = b.Where("COALESCE(t.is_favorite, FALSE)")
	}
	return b
}

// buildCountQuery counts postings matching f over the postings ⟕ tracking join.
func buildCountQuery(f model.PostingFilter) (string, []interface{}, error) {
	b := psql.Select("COUNT(*)").From("postings p").LeftJoin(postingJoin)
	return applyFilter(b, f).ToSql()
}

// buildListQuery selects one page of postings matching f, newest first,
// postings without a date last.
func buildListQuery(f model.PostingFilter, limit, offset int) (string, []interface{}, error) {
	if limit < 1 || offset < 0 {
		return "", nil, fmt.Errorf("invalid limit %d / offset %d", limit, offset)
	}
	b := psql.Select(viewColumns...).From("postings p").LeftJoin(postingJoin)
	b = applyFilter(b, f).
		OrderBy("p.date_posted DESC NULLS LAST", "p.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	return b.ToSql()
}

func buildGetQuery(id int64) (string, []interface{}, error) {
	return psql.Select(viewColumns...).
		From("postings p").
		LeftJoin(postingJoin).
		Where(sq.Eq{"p.id": id}).
		ToSql()
}

// escapeLike neutralises LIKE metacharacters so user input is matched literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
