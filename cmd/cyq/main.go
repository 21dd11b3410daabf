// Command cyq runs queries against an embedded cyq database directory:
// one-shot (-c "QUERY") or a line-per-statement script on stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dreamware/cyq/internal/engine"
)

func main() {
	app := &cli.App{
		Name:  "cyq",
		Usage: "embedded property-graph database shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   "cyq-data",
				Usage:   "database directory",
			},
			&cli.StringFlag{
				Name:    "command",
				Aliases: []string{"c"},
				Usage:   "run a single statement and exit",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log query lifecycle to stderr",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	opts := []engine.Option{}
	if c.Bool("verbose") {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithLogger(logger))
	}
	db, err := engine.Open(c.String("db"), opts...)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	conn := db.Connect()

	if q := c.String("command"); q != "" {
		return runOne(conn, q)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if err := runOne(conn, line); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return scanner.Err()
}

func runOne(conn *engine.Connection, q string) error {
	res, err := conn.Query(strings.TrimSuffix(q, ";"))
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func printResult(res *engine.Result) {
	fmt.Println(strings.Join(res.Columns, "\t"))
	for res.Next() {
		fmt.Println(strings.Join(res.Values(), "\t"))
	}
	fmt.Printf("(%d tuples, %s)\n", res.NumTuples(), res.Elapsed.Round(10e3))
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s (%s:%d)\n", w.Message, w.FilePath, w.LineNumber)
	}
}
