package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View logs",
	Long: `View trellis logs.

Displays recent log entries. Use --follow to stream logs in real-time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		follow, _ := cmd.Flags().GetBool("follow")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Logging.Path == "" {
			return fmt.Errorf("logging.path is empty: logs go to stderr")
		}
		p := newPrinter(cmd)

		if follow {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followLogs(ctx, p, cfg.Logging.Path, tail)
		}
		return showLogs(p, cfg.Logging.Path, tail)
	},
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 50, "Number of log lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	rootCmd.AddCommand(logsCmd)
}

// logEntry is a parsed JSON log line.
type logEntry struct {
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// logFiles returns trellis log files in logDir, newest first. A missing
// directory has no files.
func logFiles(logDir string) ([]string, error) {
	files, err := logging.Files(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log dir: %w", err)
	}
	return files, nil
}

func showLogs(p *printer, logDir string, n int) error {
	files, err := logFiles(logDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(p.w, "No log files found.")
		return nil
	}
	for _, line := range readLastLines(files, n) {
		printLogLine(p, line)
	}
	return nil
}

func followLogs(ctx context.Context, p *printer, logDir string, initialLines int) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	files, err := logFiles(logDir)
	if err != nil {
		return err
	}
	if len(files) > 0 && initialLines > 0 {
		for _, line := range readLastLines(files, initialLines) {
			printLogLine(p, line)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(logDir); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	currentFile := currentLogFile(logDir)
	var file *os.File
	var reader *bufio.Reader
	if currentFile != "" {
		if file, err = os.Open(currentFile); err == nil {
			_, _ = file.Seek(0, io.SeekEnd)
			reader = bufio.NewReader(file)
		}
	}
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	fmt.Fprintln(p.w, "--- Following logs (Ctrl+C to exit) ---")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Date rollover starts a new file.
			if newFile := currentLogFile(logDir); newFile != currentFile {
				if file != nil {
					_ = file.Close()
				}
				currentFile = newFile
				file, err = os.Open(currentFile)
				if err != nil {
					file, reader = nil, nil
					continue
				}
				reader = bufio.NewReader(file)
			}

			if event.Op&fsnotify.Write == fsnotify.Write && reader != nil {
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						break
					}
					printLogLine(p, strings.TrimSuffix(line, "\n"))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func currentLogFile(logDir string) string {
	path := filepath.Join(logDir, fmt.Sprintf("trellis-%s.log", time.Now().Format("2006-01-02")))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func readLastLines(files []string, n int) []string {
	var lines []string
	for _, file := range files {
		if len(lines) >= n {
			break
		}
		fileLines := readFileLines(file)
		remaining := n - len(lines)
		if len(fileLines) > remaining {
			fileLines = fileLines[len(fileLines)-remaining:]
		}
		lines = append(fileLines, lines...)
	}
	return lines
}

func readFileLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func printLogLine(p *printer, line string) {
	fmt.Fprintln(p.w, formatLogLine(p.st, line))
}

// formatLogLine renders a JSON log line compactly. Other lines pass through.
func formatLogLine(st styles, line string) string {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Message == "" {
		return line
	}
	var b strings.Builder
	b.WriteString(st.Muted.Render(entry.Time.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(levelStyle(st, entry.Level).Render(formatLogLevel(entry.Level)))
	if entry.Component != "" {
		b.WriteString(" " + st.Label.Render("["+entry.Component+"]"))
	}
	b.WriteString(" " + entry.Message)
	if entry.Error != "" {
		b.WriteString(" " + st.Error.Render("error="+entry.Error))
	}
	return b.String()
}

func levelStyle(st styles, level string) lipgloss.Style {
	switch level {
	case "warn":
		return st.Accent
	case "error", "fatal", "panic":
		return st.Error
	case "debug", "trace":
		return st.Muted
	default:
		return st.Value
	}
}

func formatLogLevel(level string) string {
	switch level {
	case "debug":
		return "DBG"
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	}
	if len(level) > 3 {
		level = level[:3]
	}
	return strings.ToUpper(level)
}
