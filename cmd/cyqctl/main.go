// Command cyqctl administers a cyq database directory: list tables,
// inspect warnings, and run DDL without entering the shell.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dreamware/cyq/internal/engine"
)

func main() {
	var db *engine.Database
	app := &cli.App{
		Name:  "cyqctl",
		Usage: "cyq database administration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   "cyq-data",
				Usage:   "database directory",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			db, err = engine.Open(c.String("db"))
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "tables",
				Usage: "list tables with type and comment",
				Action: func(c *cli.Context) error {
					return runAndPrint(db, "CALL show_tables() YIELD name, type, comment")
				},
			},
			{
				Name:      "ddl",
				Usage:     "run a DDL or COPY statement",
				ArgsUsage: "'CREATE NODE TABLE ...'",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("ddl takes exactly one statement argument")
					}
					return runAndPrint(db, c.Args().First())
				},
			},
			{
				Name:  "warnings",
				Usage: "show the session's copy warnings",
				Action: func(c *cli.Context) error {
					return runAndPrint(db, "CALL show_warnings() YIELD query_id, message, file_path, line_number, skipped_line_or_record")
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAndPrint(db *engine.Database, q string) error {
	res, err := db.Connect().Query(q)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(res.Columns, "\t"))
	for res.Next() {
		fmt.Println(strings.Join(res.Values(), "\t"))
	}
	return nil
}
