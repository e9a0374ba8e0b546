package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cql"
)

func newCQLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cql <query>",
		Short: "Parse a CQL query and print its rendering and tsquery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return explainQuery(cmd, strings.Join(args, " "))
		},
	}
}

func explainQuery(cmd *cobra.Command, query string) error {
	out := cmd.OutOrStdout()
	q, err := cql.Parse(query)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(out, "cql:     %s\n", q.String())
	tsquery, err := q.Tsquery()
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(out, "tsquery: %s\n", tsquery)
	return nil
}

func describe(err error) error {
	var pe *cql.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("query rejected: %w", pe)
	}
	return err
}
