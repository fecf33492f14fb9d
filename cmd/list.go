package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/palomafofana/port-watcher/internal/scanner"
)

var (
	jsonOutput  bool
	filterQuery string
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all listening ports",
	Long:  `List all sockets currently in LISTEN state with their owning processes.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&filterQuery, "filter", "", "Fuzzy filter by port, process or pid")
}

func runList(cmd *cobra.Command, args []string) error {
	ports := newScanner().ActivePorts(cmd.Context())
	ports = filterPorts(ports, filterQuery)

	out := cmd.OutOrStdout()
	if len(ports) == 0 {
		if jsonOutput {
			fmt.Fprintln(out, "[]")
		} else {
			fmt.Fprintln(out, "No listening ports found.")
		}
		return nil
	}

	// Sort by port number, then pid
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Port != ports[j].Port {
			return ports[i].Port < ports[j].Port
		}
		return ports[i].PID < ports[j].PID
	})

	if jsonOutput {
		return printJSON(out, ports)
	}

	return printTable(out, ports, isTerminal(out))
}

type portSource []scanner.Port

func (s portSource) String(i int) string {
	return fmt.Sprintf("%d %s %d %s", s[i].Port, s[i].Process, s[i].PID, s[i].Protocol)
}

func (s portSource) Len() int { return len(s) }

// filterPorts keeps ports fuzzy-matching query, best match first.
func filterPorts(ports []scanner.Port, query string) []scanner.Port {
	if query == "" {
		return ports
	}
	matches := fuzzy.FindFrom(query, portSource(ports))
	filtered := make([]scanner.Port, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, ports[m.Index])
	}
	return filtered
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printJSON(w io.Writer, ports []scanner.Port) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ports)
}

func printTable(w io.Writer, ports []scanner.Port, styled bool) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tPID\tPROCESS\tPROTOCOL")
	fmt.Fprintln(tw, "----\t---\t-------\t--------")

	for _, p := range ports {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", p.Port, p.PID, p.Process, p.Protocol)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// Style after alignment so escape codes do not skew the columns.
	table := buf.String()
	if styled {
		header, rest, _ := strings.Cut(table, "\n")
		table = headerStyle.Render(header) + "\n" + rest
	}

	_, err := io.WriteString(w, table)
	return err
}
