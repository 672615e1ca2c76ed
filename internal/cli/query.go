package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0ximu/mu/internal/query"
)

const queryExamples = `Examples:
  mu q "SELECT * FROM functions LIMIT 5"
  mu q "SELECT simple_name, complexity FROM functions ORDER BY complexity DESC"
  mu q "SHOW TABLES"
  mu q "fn c>50"                      # terse: complex functions
  mu q "cls n%Service"                # terse: classes matching a pattern
  mu q "fn c>10 l5 o:-complexity"     # terse: filter, limit, order
  mu q "SHOW dependencies OF mod:src/auth.py DEPTH 2"
  mu q "FIND CYCLES VIA imports"
  mu q "PATH FROM mod:a.py TO mod:c.py"`

func newQueryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "query <query>",
		Aliases: []string{"q"},
		Short:   "Run a query against the code graph",
		Long:    "Run SQL, terse syntax or a structured query against the code graph.\n\n" + queryExamples,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			input := args[0]
			// Terse inputs carry their own lN token; only SQL-shaped queries
			// take the appended LIMIT.
			if limit > 0 && strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "select") &&
				!strings.Contains(strings.ToUpper(input), " LIMIT ") {
				input = fmt.Sprintf("%s LIMIT %d", input, limit)
			}

			result, err := service.Executor().Execute(input)
			if err != nil {
				var graphErr *query.GraphRequiredError
				if errors.As(err, &graphErr) {
					return fmt.Errorf("%s\nUse the dedicated command (mu deps, mu impact, ...) or: %s",
						"this is a graph operation", graphErr.Suggestion)
				}
				return err
			}

			return printResult(result)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "append a LIMIT when the query has none")
	return cmd
}
