package repository

import (
	"fmt"
	"strings"

	"github.com/stemsi/quiz-overview/internal/regrade"
)

// queryArgs collects positional arguments and hands out their placeholders.
type queryArgs struct {
	values []any
}

func (a *queryArgs) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// attemptFilter renders the WHERE condition matching the quiz attempts of scope.
// alias is the quiz_attempts table alias used by the surrounding query.
func attemptFilter(scope regrade.Scope, alias string, args *queryArgs) string {
	conds := []string{
		alias + ".quiz_id = " + args.add(scope.QuizID()),
		alias + ".preview = FALSE",
	}

	if g := scope.GroupID(); g > 0 {
		conds = append(conds, alias+".user_id IN (SELECT gm.user_id FROM group_members gm WHERE gm.group_id = "+args.add(g)+")")
	}
	if users := scope.UserIDs(); len(users) > 0 {
		conds = append(conds, alias+".user_id = ANY("+args.add(users)+"::bigint[])")
	}
	if ids := scope.AttemptIDs(); len(ids) > 0 {
		conds = append(conds, alias+".id = ANY("+args.add(ids)+"::bigint[])")
	}
	if scope.Kind() == regrade.ScopeNeedingRegrade {
		conds = append(conds, "EXISTS (SELECT 1 FROM quiz_regrades pr WHERE pr.usage_id = "+alias+".usage_id AND pr.regraded = FALSE)")
	}

	return strings.Join(conds, " AND ")
}

// groupFilter renders an optional group membership condition on a user id column.
func groupFilter(column string, groupID int64, args *queryArgs) string {
	if groupID <= 0 {
		return ""
	}
	return " AND " + column + " IN (SELECT gm.user_id FROM group_members gm WHERE gm.group_id = " + args.add(groupID) + ")"
}
