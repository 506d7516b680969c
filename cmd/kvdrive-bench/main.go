// kvdrive-bench is a load-generation tool for a kvdrive data file. It
// writes and reads a configurable number of keys across a worker pool and
// reports throughput.
package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arfaz/kvdrive"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// benchConfig holds load-generation parameters. It can be overridden by a
// JSONC config file via --config, with CLI flags taking precedence.
type benchConfig struct {
	Keys       int     `json:"keys"`
	ValueSize  int     `json:"value_size"` //nolint:tagliatelle
	Workers    int     `json:"workers"`
	KeySize    int     `json:"key_size"`    //nolint:tagliatelle
	ReadRatio  float64 `json:"read_ratio"`  //nolint:tagliatelle
	Compact    bool    `json:"compact"`
}

func defaultBenchConfig() benchConfig {
	return benchConfig{
		Keys:      100000,
		ValueSize: 128,
		Workers:   runtime.NumCPU(),
		KeySize:   16,
		ReadRatio: 0,
	}
}

func loadBenchConfigFile(path string) (benchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return benchConfig{}, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return benchConfig{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	cfg := defaultBenchConfig()
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return benchConfig{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	return cfg, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := defaultBenchConfig()

	var (
		path       string
		configPath string
	)

	pflag.StringVarP(&path, "path", "p", "", "path to the data file (required)")
	pflag.StringVarP(&configPath, "config", "c", "", "optional JSONC file with benchConfig overrides")
	pflag.IntVarP(&cfg.Keys, "keys", "n", cfg.Keys, "number of keys to write")
	pflag.IntVar(&cfg.ValueSize, "value-size", cfg.ValueSize, "payload size in bytes")
	pflag.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "number of concurrent writer goroutines")
	pflag.IntVar(&cfg.KeySize, "key-size", cfg.KeySize, "key size in bytes")
	pflag.Float64Var(&cfg.ReadRatio, "read-ratio", cfg.ReadRatio, "fraction of keys re-read after the write phase")
	pflag.BoolVar(&cfg.Compact, "compact", cfg.Compact, "compact the store after writing")
	pflag.Parse()

	if configPath != "" {
		fileCfg, err := loadBenchConfigFile(configPath)
		if err != nil {
			return err
		}

		// Flags given explicitly on the command line win over the file.
		flagCfg := cfg
		cfg = fileCfg
		pflag.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "keys":
				cfg.Keys = flagCfg.Keys
			case "value-size":
				cfg.ValueSize = flagCfg.ValueSize
			case "workers":
				cfg.Workers = flagCfg.Workers
			case "key-size":
				cfg.KeySize = flagCfg.KeySize
			case "read-ratio":
				cfg.ReadRatio = flagCfg.ReadRatio
			case "compact":
				cfg.Compact = flagCfg.Compact
			}
		})
	}

	if path == "" {
		return fmt.Errorf("missing required --path flag")
	}

	store, err := kvdrive.Open(kvdrive.Options{Path: path})
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer store.Close()

	keys := generateKeys(cfg.Keys, cfg.KeySize)

	if err := benchWrites(store, keys, cfg); err != nil {
		return err
	}

	if cfg.ReadRatio > 0 {
		benchReads(store, keys, cfg)
	}

	if cfg.Compact {
		before := store.FileSize()

		start := time.Now()
		if err := store.Compact(); err != nil {
			return fmt.Errorf("compacting: %w", err)
		}

		fmt.Printf("compact: %d -> %d bytes in %v\n", before, store.FileSize(), time.Since(start).Round(time.Millisecond))
	}

	return nil
}

func generateKeys(count, keySize int) [][]byte {
	keys := make([][]byte, count)
	for i := range keys {
		keys[i] = make([]byte, keySize)
		rand.Read(keys[i])
	}

	return keys
}

// benchWrites writes every key in keys across cfg.Workers goroutines, each
// pulling indices off a shared channel, then reports aggregate throughput.
func benchWrites(store *kvdrive.Store, keys [][]byte, cfg benchConfig) error {
	indices := make(chan int, cfg.Workers*2)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	value := make([]byte, cfg.ValueSize)
	rand.Read(value)

	start := time.Now()

	for range max(cfg.Workers, 1) {
		wg.Go(func() {
			for i := range indices {
				if _, err := store.Write(keys[i], value); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()

					return
				}
			}
		})
	}

	for i := range keys {
		indices <- i
	}
	close(indices)

	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("write worker failed: %w", firstErr)
	}

	elapsed := time.Since(start)
	rate := float64(len(keys)) / elapsed.Seconds()
	fmt.Printf("write: %d keys (%d workers, %d bytes/value) in %v (%.0f ops/sec), file size %s\n",
		len(keys), cfg.Workers, cfg.ValueSize, elapsed.Round(time.Millisecond), rate, kvdrive.FormatBytes(store.FileSize()))

	return nil
}

// benchReads re-reads a ReadRatio fraction of keys across cfg.Workers
// goroutines and reports aggregate throughput and hit count.
func benchReads(store *kvdrive.Store, keys [][]byte, cfg benchConfig) {
	n := int(float64(len(keys)) * cfg.ReadRatio)
	if n > len(keys) {
		n = len(keys)
	}

	indices := make(chan int, cfg.Workers*2)

	var (
		wg   sync.WaitGroup
		hits atomic.Int64
	)

	start := time.Now()

	for range max(cfg.Workers, 1) {
		wg.Go(func() {
			for i := range indices {
				if _, err := store.Read(keys[i]); err == nil {
					hits.Add(1)
				}
			}
		})
	}

	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)

	wg.Wait()

	elapsed := time.Since(start)
	rate := float64(n) / elapsed.Seconds()
	fmt.Printf("read:  %d keys (%d workers) in %v (%.0f ops/sec), %d hits\n",
		n, cfg.Workers, elapsed.Round(time.Millisecond), rate, hits.Load())
}

