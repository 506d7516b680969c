// kvdrive-shell is an interactive REPL for poking at a kvdrive data file.
//
// Usage:
//
//	kvdrive-shell <data-file>   Open (creating if missing) and start the shell
//
// Commands (in REPL):
//
//	put <key> <value>        Write a value
//	get <key>                Read a value
//	del <key>                Tombstone a key
//	rename <old> <new>       Rename a key in place
//	scan [limit]             List live entries, most-recent-first
//	len                      Count live entries
//	info                     Show file size, live count, compaction estimate
//	compact                  Rewrite the file, dropping dead versions
//	bulk <count> [prefix]    Insert N random-valued entries
//	seq <count> [start]      Insert N sequential entries
//	bench <count>            Benchmark put+get performance
//	help                     Show this help
//	exit / quit / q          Exit
package main

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arfaz/kvdrive"
	"github.com/peterh/liner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("kvdrive-shell", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kvdrive-shell <data-file>\n")
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing data file path")
	}

	store, err := kvdrive.Open(kvdrive.Options{Path: fs.Arg(0)})
	if err != nil {
		return fmt.Errorf("opening %s: %w", fs.Arg(0), err)
	}
	defer store.Close()

	repl := &REPL{store: store}

	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	store *kvdrive.Store
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".kvdrive_shell_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("kvdrive-shell - %s\n", r.store.Path())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("kvdrive> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "put":
			r.cmdPut(args)

		case "get":
			r.cmdGet(args)

		case "del", "delete":
			r.cmdDelete(args)

		case "rename":
			r.cmdRename(args)

		case "scan", "ls", "list":
			r.cmdScan(args)

		case "len", "count":
			r.cmdLen()

		case "info":
			r.cmdInfo()

		case "compact":
			r.cmdCompact()

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		case "bulk":
			r.cmdBulk(args)

		case "seq":
			r.cmdSeq(args)

		case "bench":
			r.cmdBench(args)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"put", "get", "del", "delete", "rename",
		"scan", "ls", "list", "len", "count",
		"info", "compact", "bulk", "seq", "bench",
		"clear", "cls", "help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  put <key> <value>        Write a value")
	fmt.Println("  get <key>                Read a value")
	fmt.Println("  del <key>                Tombstone a key")
	fmt.Println("  rename <old> <new>       Rename a key in place")
	fmt.Println("  scan [limit]             List live entries, most-recent-first")
	fmt.Println("  len                      Count live entries")
	fmt.Println("  info                     Show file size, live count, compaction estimate")
	fmt.Println("  compact                  Rewrite the file, dropping dead versions")
	fmt.Println("  bulk <count> [prefix]    Insert N random-valued entries")
	fmt.Println("  seq <count> [start]      Insert N sequential entries")
	fmt.Println("  bench <count>            Benchmark put+get performance")
	fmt.Println("  help                     Show this help")
	fmt.Println("  exit / quit / q          Exit")
}

func (r *REPL) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: put <key> <value>")

		return
	}

	if _, err := r.store.Write([]byte(args[0]), []byte(strings.Join(args[1:], " "))); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: put %q\n", args[0])
}

func (r *REPL) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: get <key>")

		return
	}

	value, err := r.store.Read([]byte(args[0]))
	if err != nil {
		if errors.Is(err, kvdrive.ErrNotFound) {
			fmt.Println("(not found)")

			return
		}

		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("%s\n", value)
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: del <key>")

		return
	}

	if _, err := r.store.Delete([]byte(args[0])); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: deleted %q\n", args[0])
}

func (r *REPL) cmdRename(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: rename <old> <new>")

		return
	}

	if _, err := r.store.Rename([]byte(args[0]), []byte(args[1])); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: renamed %q to %q\n", args[0], args[1])
}

func (r *REPL) cmdScan(args []string) {
	limit := 20

	if len(args) >= 1 {
		var err error

		limit, err = strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("Error parsing limit: %v\n", err)

			return
		}
	}

	i := 0
	for h := range r.store.Iter() {
		if i >= limit {
			fmt.Printf("... (showing first %d, use 'scan <limit>' for more)\n", limit)

			break
		}

		fmt.Printf("%3d. hash=%016x  size=%d\n", i+1, h.KeyHash(), h.Size())
		i++
	}

	if i == 0 {
		fmt.Println("(empty)")
	}
}

func (r *REPL) cmdLen() {
	fmt.Printf("Live entries: %d\n", r.store.Len())
}

func (r *REPL) cmdInfo() {
	fmt.Printf("Data file info:\n")
	fmt.Printf("  Path:                %s\n", r.store.Path())
	fmt.Printf("  File size:           %s\n", kvdrive.FormatBytes(r.store.FileSize()))
	fmt.Printf("  Live entries:        %d\n", r.store.Len())
	fmt.Printf("  Compaction savings:  %s\n", kvdrive.FormatBytes(r.store.EstimateCompactionSavings()))
}

func (r *REPL) cmdCompact() {
	before := r.store.FileSize()

	if err := r.store.Compact(); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: compacted %d -> %d bytes\n", before, r.store.FileSize())
}

func (r *REPL) cmdBulk(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bulk <count> [prefix]")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Printf("Error: count must be a positive integer\n")

		return
	}

	prefix := ""
	if len(args) >= 2 {
		prefix = args[1]
	}

	start := time.Now()

	for i := 0; i < count; i++ {
		suffix := make([]byte, 8)
		rand.Read(suffix)

		key := fmt.Sprintf("%s%s", prefix, hex.EncodeToString(suffix))
		value := make([]byte, 32)
		rand.Read(value)

		if _, err := r.store.Write([]byte(key), value); err != nil {
			fmt.Printf("Error at entry %d: %v\n", i+1, err)

			return
		}
	}

	elapsed := time.Since(start)
	rate := float64(count) / elapsed.Seconds()
	fmt.Printf("OK: inserted %d entries in %v (%.0f ops/sec)\n", count, elapsed.Round(time.Millisecond), rate)
}

func (r *REPL) cmdSeq(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: seq <count> [start]")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Printf("Error: count must be a positive integer\n")

		return
	}

	startNum := uint64(1)
	if len(args) >= 2 {
		startNum, err = strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Printf("Error parsing start: %v\n", err)

			return
		}
	}

	start := time.Now()

	for i := 0; i < count; i++ {
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], startNum+uint64(i))

		if _, err := r.store.Write(key[:], []byte(fmt.Sprintf("seq-%d", startNum+uint64(i)))); err != nil {
			fmt.Printf("Error at entry %d: %v\n", i+1, err)

			return
		}
	}

	elapsed := time.Since(start)
	rate := float64(count) / elapsed.Seconds()
	fmt.Printf("OK: inserted %d sequential entries in %v (%.0f ops/sec)\n", count, elapsed.Round(time.Millisecond), rate)
}

func (r *REPL) cmdBench(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bench <count>")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Printf("Error: count must be a positive integer\n")

		return
	}

	keys := make([][]byte, count)
	for i := range keys {
		keys[i] = make([]byte, 16)
		rand.Read(keys[i])
	}

	fmt.Printf("Benchmarking %d operations...\n", count)

	putStart := time.Now()

	for i, key := range keys {
		if _, err := r.store.Write(key, []byte(fmt.Sprintf("bench-%d", i))); err != nil {
			fmt.Printf("Error at put %d: %v\n", i+1, err)

			return
		}
	}

	putElapsed := time.Since(putStart)

	getStart := time.Now()
	hits := 0

	for _, key := range keys {
		if _, err := r.store.Read(key); err == nil {
			hits++
		} else if !errors.Is(err, kvdrive.ErrNotFound) {
			fmt.Printf("Error on get: %v\n", err)

			return
		}
	}

	getElapsed := time.Since(getStart)

	fmt.Printf("\nResults:\n")
	fmt.Printf("  Puts:  %d ops in %v (%.0f ops/sec)\n",
		count, putElapsed.Round(time.Millisecond), float64(count)/putElapsed.Seconds())
	fmt.Printf("  Gets:  %d ops in %v (%.0f ops/sec), %d hits\n",
		count, getElapsed.Round(time.Millisecond), float64(count)/getElapsed.Seconds(), hits)
}
