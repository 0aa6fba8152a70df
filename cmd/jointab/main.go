// Command jointab joins a table with another tab and prints the result.
//
//	jointab -left sales.csv -right regions.parquet -on region -right-columns manager
//	jointab -left sales.csv -right regions.parquet -params step.json -out joined.parquet
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/NerdMeNot/jointab"
	"github.com/NerdMeNot/jointab/internal/logging"
)

var (
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF6B6B"})
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitMessage = 2
)

// formatFlags collects repeated -format col=fmt flags
type formatFlags map[string]string

func (f formatFlags) String() string {
	pairs := make([]string, 0, len(f))
	for col, format := range f {
		pairs = append(pairs, col+"="+format)
	}
	return strings.Join(pairs, ",")
}

func (f formatFlags) Set(value string) error {
	col, format, ok := strings.Cut(value, "=")
	if !ok || col == "" {
		return fmt.Errorf("expected col=format, got %q", value)
	}
	f[col] = format
	return nil
}

type config struct {
	left      string
	right     string
	rightName string
	params    string
	joinType  string
	on        string
	rightCols string
	rightAll  bool
	formats   formatFlags
	locale    string
	lang      string
	out       string
	seq       string
	verbose   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config{formats: formatFlags{}}

	fs := flag.NewFlagSet("jointab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.left, "left", "", "input table (csv, json or parquet)")
	fs.StringVar(&cfg.right, "right", "", "tab to join with (csv, json, parquet or parquet URL)")
	fs.StringVar(&cfg.rightName, "right-name", "", "display name of the right tab (default: file name)")
	fs.StringVar(&cfg.params, "params", "", "join step parameters, JSON, any version")
	fs.StringVar(&cfg.joinType, "type", "left", "join type: left, inner or right")
	fs.StringVar(&cfg.on, "on", "", "comma-separated join columns")
	fs.StringVar(&cfg.rightCols, "right-columns", "", "comma-separated columns to add from the right tab")
	fs.BoolVar(&cfg.rightAll, "right-all", false, "add every right column the input lacks")
	fs.Var(cfg.formats, "format", "display format of a right tab column, col=format (repeatable)")
	fs.StringVar(&cfg.locale, "locale", "", "message catalog JSON")
	fs.StringVar(&cfg.lang, "lang", "", "language tag for number separators, e.g. de-DE")
	fs.StringVar(&cfg.out, "out", "", "write the result to a .csv, .json or .parquet file")
	fs.StringVar(&cfg.seq, "seq", "", "Seq server URL for logs")
	fs.BoolVar(&cfg.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger, closeFn := logging.SetupLogger(logging.Options{Output: stderr, Level: level, SeqURL: cfg.seq})
	defer closeFn()
	slog.SetDefault(logger)

	if err := joinTabs(cfg, stdout, stderr); err != nil {
		var msg *jointab.Message
		if errors.As(err, &msg) {
			fmt.Fprintln(stderr, errorStyle.Render(msg.Format(translator(cfg.locale, stderr))))
			return exitMessage
		}
		slog.Error("join failed", slog.Any("error", err))
		fmt.Fprintln(stderr, errorStyle.Render("error: "+err.Error()))
		return exitFailure
	}
	return exitOK
}

func joinTabs(cfg config, stdout, stderr io.Writer) error {
	if cfg.left == "" {
		return fmt.Errorf("-left is required")
	}
	display := jointab.GetDisplayConfig()
	if cfg.lang != "" {
		tag, err := language.Parse(cfg.lang)
		if err != nil {
			return fmt.Errorf("invalid -lang: %w", err)
		}
		display.Locale = tag
	}

	left, err := loadFrame(cfg.left)
	if err != nil {
		return fmt.Errorf("loading %s: %w", cfg.left, err)
	}

	raw, err := rawParams(cfg)
	if err != nil {
		return err
	}

	tabs := jointab.TabMap{}
	if cfg.right != "" {
		tab, err := loadTab(cfg, raw)
		if err != nil {
			return err
		}
		tabs[tab.Slug] = tab
		raw["right_tab"] = tab.Slug
	}

	params, err := jointab.DecodeParams(raw, tabs)
	if err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}

	result, err := jointab.Render(left, params, jointab.RenderColumnsOf(left, nil))
	if err != nil {
		return err
	}

	display.Formats = result.ColumnFormats
	fmt.Fprintln(stdout, result.DataFrame.StringWithConfig(display))
	if result.DataFrame == left {
		fmt.Fprintln(stderr, mutedStyle.Render("join not configured; input passed through"))
	}

	if cfg.out != "" {
		if err := writeFrame(result.DataFrame, cfg.out); err != nil {
			return fmt.Errorf("writing %s: %w", cfg.out, err)
		}
	}
	return nil
}

// rawParams returns the persisted parameter blob, from -params or built
// from the inline flags as a current-version blob.
func rawParams(cfg config) (map[string]interface{}, error) {
	if cfg.params != "" {
		data, err := os.ReadFile(cfg.params)
		if err != nil {
			return nil, fmt.Errorf("reading params: %w", err)
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing params: %w", err)
		}
		if raw == nil {
			return nil, fmt.Errorf("parsing params: expected a JSON object")
		}
		return raw, nil
	}

	return map[string]interface{}{
		"right_tab": nil,
		"type":      cfg.joinType,
		"join_columns": map[string]interface{}{
			"on":       splitList(cfg.on),
			"right":    splitList(cfg.rightCols),
			"rightAll": cfg.rightAll,
		},
	}, nil
}

// loadTab loads the right tab. A slug already named by the parameter blob
// is kept so the blob resolves to this tab.
func loadTab(cfg config, raw map[string]interface{}) (*jointab.TabOutput, error) {
	df, err := loadFrame(cfg.right)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.right, err)
	}

	slug, _ := raw["right_tab"].(string)
	if slug == "" {
		slug = "tab-" + uuid.NewString()
	}
	name := cfg.rightName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(cfg.right), filepath.Ext(cfg.right))
	}

	tab, err := jointab.NewTabOutput(slug, name, df, cfg.formats)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded tab",
		slog.String("slug", slug),
		slog.String("name", name),
		slog.Int("rows", df.Height()),
		slog.Int("columns", df.Width()),
	)
	return tab, nil
}

func translator(path string, stderr io.Writer) jointab.Translator {
	if path == "" {
		return nil
	}
	catalog, err := jointab.ReadCatalog(path)
	if err != nil {
		fmt.Fprintln(stderr, mutedStyle.Render(fmt.Sprintf("ignoring catalog: %v", err)))
		return nil
	}
	return catalog
}

func splitList(s string) []interface{} {
	out := []interface{}{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
