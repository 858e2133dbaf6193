// Command asyncmy is a minimal MySQL/MariaDB shell, grounded in
// examples/simple.go's connect/query/checkError flow: connect, run one
// statement, print the result, exit. Host/user defaults fall back to
// the [client] section of ~/.my.cnf via internal/optionfile the way the
// mysql command-line client does, so a bare `asyncmy query "SELECT 1"`
// works on a host with a populated option file.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/long2ice/asyncmy"
	"github.com/long2ice/asyncmy/auth"
	"github.com/long2ice/asyncmy/codec"
	"github.com/long2ice/asyncmy/internal/optionfile"
	"github.com/long2ice/asyncmy/resultset"
)

var (
	host     string
	port     string
	user     string
	password string
	database string
	verbose  bool
)

func defaultsFromOptionFile() optionfile.Values {
	home, err := os.UserHomeDir()
	if err != nil {
		return optionfile.Values{}
	}
	v, err := optionfile.Read(filepath.Join(home, ".my.cnf"))
	if err != nil {
		return optionfile.Values{}
	}
	return v
}

func newRootCmd() *cobra.Command {
	defaults := defaultsFromOptionFile()
	if defaults.Host == "" {
		defaults.Host = "127.0.0.1"
	}
	if defaults.Port == "" {
		defaults.Port = "3306"
	}

	root := &cobra.Command{
		Use:   "asyncmy",
		Short: "A MySQL/MariaDB command-line client",
	}
	root.PersistentFlags().StringVar(&host, "host", defaults.Host, "server host")
	root.PersistentFlags().StringVar(&port, "port", defaults.Port, "server port")
	root.PersistentFlags().StringVar(&user, "user", defaults.User, "username")
	root.PersistentFlags().StringVar(&password, "password", defaults.Password, "password")
	root.PersistentFlags().StringVar(&database, "database", defaults.Database, "default database")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "log protocol-level detail to stderr")

	root.AddCommand(pingCmd(), queryCmd())
	return root
}

func connect(ctx context.Context) (*asyncmy.Conn, error) {
	level := zerolog.Disabled
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	opts := &asyncmy.Options{
		Addr:           host + ":" + port,
		User:           user,
		Password:       password,
		DBName:         database,
		ConnectTimeout: 5 * time.Second,
		DialogPrompter: auth.TerminalPrompter(int(os.Stdin.Fd()), os.Stderr),
	}
	return asyncmy.Connect(ctx, opts, &log)
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := conn.Ping(ctx); err != nil {
				return err
			}
			fmt.Println("OK", conn.ServerVersion())
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run one SQL statement and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			rows, err := conn.Query(args[0])
			if err != nil {
				return err
			}
			return printRows(rows)
		},
	}
}

func printRows(rows *resultset.Rows) error {
	if ok := rows.OK(); ok != nil {
		fmt.Printf("OK, %d row(s) affected", ok.AffectedRows)
		if ok.LastInsertID != 0 {
			fmt.Printf(", last insert id %d", ok.LastInsertID)
		}
		fmt.Println()
		return nil
	}

	fields := rows.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	fmt.Println(strings.Join(names, "\t"))

	vals := make([]codec.Value, len(fields))
	for {
		more, err := rows.Next(vals)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = fmt.Sprint(v.Any())
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
