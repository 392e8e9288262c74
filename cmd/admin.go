// cmd/admin.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/markb/logwatch/internal/client"
	"github.com/markb/logwatch/internal/watcher"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show captured log events",
	Long:  `Prints events captured by a running server at or after --since (epoch milliseconds, or a duration such as 10m).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAdminClient(cmd)
		if err != nil {
			return err
		}
		sinceFlag, _ := cmd.Flags().GetString("since")
		since, err := parseSince(sinceFlag, time.Now())
		if err != nil {
			return err
		}

		resp, err := c.History(cmd.Context(), since)
		if err != nil {
			return err
		}
		if !tableOutput(cmd) {
			return printJSON(resp)
		}

		if resp.PossiblyIncomplete {
			fmt.Fprintln(os.Stderr, "Warning: history wrapped, older events may be missing.")
		}
		if resp.Found == 0 {
			fmt.Println("No events captured.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLEVEL\tLOGGER\tMESSAGE")
		for _, doc := range resp.History {
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", doc["time"], doc["level"], doc["logger"], doc["message"])
		}
		w.Flush()
		fmt.Printf("\n%d events, next --since %d\n", resp.Found, resp.Next)
		return nil
	},
}

var loggersCmd = &cobra.Command{
	Use:   "loggers",
	Short: "List loggers and their levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAdminClient(cmd)
		if err != nil {
			return err
		}
		loggers, err := c.Loggers(cmd.Context())
		if err != nil {
			return err
		}
		if !tableOutput(cmd) {
			return printJSON(loggers)
		}
		printLoggers(loggers)
		return nil
	},
}

var levelCmd = &cobra.Command{
	Use:   "level <logger> [LEVEL]",
	Short: "Show or set a logger's level",
	Long: `With one argument prints the logger's level. With two sets it; "unset"
turns the logger off. Use "root" for the root logger.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAdminClient(cmd)
		if err != nil {
			return err
		}

		var info watcher.LoggerInfo
		if len(args) == 2 {
			info, err = c.SetLevel(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
		} else {
			loggers, err := c.Loggers(cmd.Context())
			if err != nil {
				return err
			}
			found := false
			for _, l := range loggers {
				if l.Name == args[0] {
					info, found = l, true
					break
				}
			}
			if !found {
				return fmt.Errorf("logger %s not found", args[0])
			}
		}

		if !tableOutput(cmd) {
			return printJSON(info)
		}
		printLoggers([]watcher.LoggerInfo{info})
		return nil
	},
}

var thresholdCmd = &cobra.Command{
	Use:   "threshold [LEVEL]",
	Short: "Show or set the history capture threshold",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAdminClient(cmd)
		if err != nil {
			return err
		}

		var threshold string
		if len(args) == 1 {
			threshold, err = c.SetThreshold(cmd.Context(), args[0])
		} else {
			threshold, err = c.Threshold(cmd.Context())
		}
		if err != nil {
			return err
		}

		if !tableOutput(cmd) {
			return printJSON(map[string]string{"threshold": threshold})
		}
		fmt.Println(threshold)
		return nil
	},
}

// newAdminClient builds a client from --url/--apikey, falling back to
// LOGWATCH_URL and LOGWATCH_API_KEY, then LOGWATCH_SERVICE_KEY and
// LOGWATCH_ANON_KEY. On a terminal a missing key is prompted for.
func newAdminClient(cmd *cobra.Command) (*client.Client, error) {
	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = os.Getenv("LOGWATCH_URL")
	}
	if url == "" {
		url = "http://localhost:8080"
	}

	key, _ := cmd.Flags().GetString("apikey")
	for _, env := range []string{"LOGWATCH_API_KEY", "LOGWATCH_SERVICE_KEY", "LOGWATCH_ANON_KEY"} {
		if key != "" {
			break
		}
		key = os.Getenv(env)
	}

	if key == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, fmt.Errorf("API key required: set --apikey or LOGWATCH_API_KEY")
		}
		fmt.Fprint(os.Stderr, "API key: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read API key: %w", err)
		}
		key = strings.TrimSpace(string(b))
	}

	return client.New(url, key), nil
}

// tableOutput reports whether results are printed as a table: stdout is a
// terminal and --json was not given.
func tableOutput(cmd *cobra.Command) bool {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLoggers(loggers []watcher.LoggerInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLEVEL\tSET")
	for _, l := range loggers {
		level := "-"
		if l.Level != nil {
			level = *l.Level
		}
		fmt.Fprintf(w, "%s\t%s\t%t\n", l.Name, level, l.Set)
	}
	w.Flush()
}

// parseSince accepts epoch milliseconds or a duration relative to now.
func parseSince(s string, now time.Time) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --since %q: use epoch milliseconds or a duration like 10m", s)
	}
	return now.Add(-d).UnixMilli(), nil
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, loggersCmd, levelCmd, thresholdCmd} {
		c.Flags().String("url", "", "Server URL (default: $LOGWATCH_URL or http://localhost:8080)")
		c.Flags().String("apikey", "", "Admin API key (default: $LOGWATCH_API_KEY)")
		c.Flags().Bool("json", false, "Print JSON even on a terminal")
		rootCmd.AddCommand(c)
	}
	historyCmd.Flags().String("since", "", "Only events at or after this time: epoch ms or a duration like 10m")
}
