package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/blockfs-io/blockfs/pkg/block"
	"github.com/blockfs-io/blockfs/pkg/common/log"
	"github.com/blockfs-io/blockfs/pkg/config"
	"github.com/blockfs-io/blockfs/pkg/inventory"
	"github.com/blockfs-io/blockfs/pkg/scanner"
	"github.com/blockfs-io/blockfs/pkg/stats"
	"github.com/blockfs-io/blockfs/pkg/telemetry"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".stats"),
	readline.PcItem(".exit"),
	readline.PcItem("SCAN",
		readline.PcItem("VERIFY"),
	),
	readline.PcItem("INFO"),
	readline.PcItem("DECODE"),
	readline.PcItem("ENCODE"),
	readline.PcItem("ID"),
	readline.PcItem("CHECKSUM"),
	readline.PcItem("INVSAVE"),
	readline.PcItem("INVLOAD"),
)

const helpText = `
blk - block inspector for blockfs storage directories

Usage:
  blk [block_directory]       - Start with an optional block directory

Commands:
  .help                       - Show this help message
  .open DIR                   - Point the inspector at a block directory
  .stats                      - Show inspector statistics
  .exit                       - Exit the program

  SCAN [dir] [VERIFY]         - Sweep a directory; VERIFY also computes checksums
  INFO name                   - Classify a filename and print its id/genstamp
  DECODE file                 - Decode a serialized block descriptor file
  ENCODE id len gen out [src] - Serialize a descriptor to a file, with the
                                checksum of src attached when given
  ID file                     - Decode only the id and genstamp of a descriptor
  CHECKSUM file               - Print the SHA-256 checksum of a file
  INVSAVE dir out [none|snappy|zstd] - Sweep dir and save an inventory snapshot
  INVLOAD file                - Load and print an inventory snapshot
`

// codecLogger logs codec traffic the way the legacy tooling did, through
// the injected observer hook instead of a global logger in the codec.
type codecLogger struct {
	logger log.Logger
}

func (o *codecLogger) OnBlockWrite(b *block.Block, checksumLen int) {
	o.logger.Debug("serialize checksum: len=%d value=%s", checksumLen, b.ChecksumString())
}

func (o *codecLogger) OnBlockRead(b *block.Block, checksumLen int) {
	o.logger.Debug("deserialize checksum: len=%d value=%s", checksumLen, b.ChecksumString())
}

func main() {
	fmt.Println("blk - blockfs inspector")
	fmt.Println("Enter .help for usage hints.")

	logger := log.GetDefaultLogger().WithField("component", "blk")
	collector := stats.NewCollector()

	telCfg := telemetry.DefaultConfig()
	telCfg.LoadFromEnv()
	tel, err := telemetry.New(telCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing telemetry: %s\n", err)
		os.Exit(1)
	}
	defer tel.Shutdown(context.Background())

	codec := block.NewCodec(block.WithObserver(&codecLogger{logger: logger}))

	var cfg *config.Config
	if len(os.Args) > 1 {
		cfg = openDir(os.Args[1])
	}

	historyFile := filepath.Join(os.TempDir(), ".blk_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "blk> ",
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		if cfg != nil {
			rl.SetPrompt(fmt.Sprintf("blk:%s> ", cfg.BlockDir))
		} else {
			rl.SetPrompt("blk> ")
		}

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		if strings.HasPrefix(cmd, ".") {
			switch strings.ToLower(cmd) {
			case ".help":
				fmt.Print(helpText)

			case ".open":
				if len(parts) < 2 {
					fmt.Println("Error: Missing directory argument")
					continue
				}
				cfg = openDir(parts[1])

			case ".stats":
				printStats(collector.GetStats())

			case ".exit":
				fmt.Println("Goodbye!")
				return

			default:
				fmt.Printf("Unknown command: %s\n", cmd)
			}
			continue
		}

		switch cmd {
		case "SCAN":
			verify := false
			for _, arg := range parts[1:] {
				if strings.EqualFold(arg, "VERIFY") {
					verify = true
				} else {
					cfg = openDir(arg)
				}
			}
			if cfg == nil {
				fmt.Println("No block directory open (use .open DIR or SCAN dir)")
				continue
			}
			cfg.SetVerifyChecksums(verify)
			runScan(cfg, logger, collector)

		case "INFO":
			if len(parts) < 2 {
				fmt.Println("Error: Missing filename argument")
				continue
			}
			printInfo(parts[1])

		case "DECODE":
			if len(parts) < 2 {
				fmt.Println("Error: Missing file argument")
				continue
			}
			runDecode(codec, collector, parts[1])

		case "ENCODE":
			if len(parts) < 5 {
				fmt.Println("Usage: ENCODE id len genstamp outfile [datafile]")
				continue
			}
			runEncode(codec, collector, parts[1:])

		case "ID":
			if len(parts) < 2 {
				fmt.Println("Error: Missing file argument")
				continue
			}
			runDecodeID(codec, collector, parts[1])

		case "CHECKSUM":
			if len(parts) < 2 {
				fmt.Println("Error: Missing file argument")
				continue
			}
			collector.TrackOperation(stats.OpChecksum)
			ck := block.ComputeChecksum(parts[1])
			if ck == nil {
				fmt.Println(block.NoChecksum)
			} else {
				fmt.Println(block.EncodeChecksum(ck))
			}

		case "INVSAVE":
			if len(parts) < 3 {
				fmt.Println("Usage: INVSAVE dir outfile [none|snappy|zstd]")
				continue
			}
			runInvSave(openDir(parts[1]), logger, collector, parts)

		case "INVLOAD":
			if len(parts) < 2 {
				fmt.Println("Error: Missing file argument")
				continue
			}
			blocks, err := inventory.ReadFile(parts[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading inventory: %s\n", err)
				collector.TrackError("inventory_read")
				continue
			}
			collector.TrackOperation(stats.OpInventoryRead)
			for _, b := range blocks {
				fmt.Println(describeBlock(b))
			}
			fmt.Printf("%d blocks\n", len(blocks))

		default:
			fmt.Printf("Unknown command: %s (use .help for usage)\n", cmd)
		}
	}
}

func openDir(dir string) *config.Config {
	path := filepath.Join(dir, config.DefaultConfigFileName)
	cfg, err := config.LoadConfigFromFile(path)
	if err == nil {
		fmt.Printf("Loaded configuration from %s\n", path)
		return cfg
	}
	cfg = config.NewDefaultConfig(dir)
	fmt.Printf("Inspecting %s\n", dir)
	return cfg
}

func runScan(cfg *config.Config, logger log.Logger, collector stats.Collector) {
	s := scanner.New(cfg, scanner.WithLogger(logger), scanner.WithCollector(collector))
	report, err := s.Scan(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning: %s\n", err)
		return
	}

	for _, e := range report.Entries {
		meta := "-"
		if e.MetaPath != "" {
			meta = filepath.Base(e.MetaPath)
		}
		fmt.Printf("%-24s %12d bytes  gen %-8d meta %s\n",
			e.Block.BlockName(), e.Block.NumBytes(), e.Block.GenerationStamp(), meta)
	}
	for _, orphan := range report.OrphanMetas {
		fmt.Printf("orphan meta: %s\n", orphan)
	}
	for _, path := range report.Unverified {
		fmt.Printf("unverified: %s\n", path)
	}
	fmt.Printf("%d files seen, %d blocks, %d orphan metas\n",
		report.FilesSeen, len(report.Entries), len(report.OrphanMetas))
}

func printInfo(name string) {
	switch {
	case block.IsBlockFilename(name):
		id, _ := block.TryFilename2ID(name)
		fmt.Printf("block file: id=%d\n", id)
	case block.IsMetaFilename(name):
		fmt.Printf("metadata file: id=%d genstamp=%d block_file=%s\n",
			block.BlockIDFromName(name),
			block.GenerationStampFromMeta(name),
			block.MetaToBlockFile(name))
	default:
		fmt.Println("not a block or metadata filename")
	}
}

func runDecode(codec *block.Codec, collector stats.Collector, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %s\n", err)
		return
	}
	defer f.Close()

	var b block.Block
	if err := codec.ReadBlock(f, &b); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding block: %s\n", err)
		collector.TrackError("decode")
		return
	}
	collector.TrackOperation(stats.OpDecode)
	fmt.Println(describeBlock(&b))
}

func runDecodeID(codec *block.Codec, collector stats.Collector, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %s\n", err)
		return
	}
	defer f.Close()

	var b block.Block
	if err := codec.ReadBlockID(f, &b); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding block id: %s\n", err)
		collector.TrackError("decode_id")
		return
	}
	collector.TrackOperation(stats.OpDecodeID)
	fmt.Printf("%s gen=%d\n", b.BlockName(), b.GenerationStamp())
}

func runEncode(codec *block.Codec, collector stats.Collector, args []string) {
	id, err1 := strconv.ParseInt(args[0], 10, 64)
	numBytes, err2 := strconv.ParseInt(args[1], 10, 64)
	genStamp, err3 := strconv.ParseInt(args[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Println("Error: id, len and genstamp must be integers")
		return
	}

	b := block.NewBlock(id, numBytes, genStamp)
	if len(args) > 4 {
		b.SetChecksumFromFile(args[4])
		if b.Checksum() == nil {
			fmt.Printf("Warning: could not checksum %s, encoding without one\n", args[4])
		}
	}

	out, err := os.Create(args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating file: %s\n", err)
		return
	}
	defer out.Close()

	if err := codec.WriteBlock(out, b); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding block: %s\n", err)
		collector.TrackError("encode")
		return
	}
	collector.TrackOperation(stats.OpEncode)
	fmt.Printf("Wrote %s to %s\n", b, args[3])
}

func runInvSave(cfg *config.Config, logger log.Logger, collector stats.Collector, parts []string) {
	codecName := cfg.InventoryCompression
	if len(parts) > 3 {
		codecName = parts[3]
	}
	invCodec, err := inventory.ParseCompressionCodec(codecName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}

	s := scanner.New(cfg, scanner.WithLogger(logger), scanner.WithCollector(collector))
	report, err := s.Scan(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning: %s\n", err)
		return
	}

	if err := inventory.WriteFile(parts[2], report.Blocks(), invCodec); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing inventory: %s\n", err)
		collector.TrackError("inventory_write")
		return
	}
	collector.TrackOperation(stats.OpInventoryWrite)
	fmt.Printf("Saved %d blocks to %s (%s)\n", len(report.Entries), parts[2], invCodec)
}

func describeBlock(b *block.Block) string {
	return fmt.Sprintf("%-24s len=%d gen=%d checksum=%s",
		b.BlockName(), b.NumBytes(), b.GenerationStamp(), b.ChecksumString())
}

func printStats(all map[string]interface{}) {
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %v\n", k, all[k])
	}
}
