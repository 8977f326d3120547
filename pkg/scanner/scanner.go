// Package scanner enumerates a storage directory and pairs block files
// with their metadata files. The sweep is read-only: it never creates,
// renames or removes anything in the directory.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/blockfs-io/blockfs/pkg/block"
	"github.com/blockfs-io/blockfs/pkg/common/log"
	"github.com/blockfs-io/blockfs/pkg/config"
	"github.com/blockfs-io/blockfs/pkg/stats"
)

// Entry is one block discovered during a sweep.
type Entry struct {
	// Block carries the identity parsed from filenames: ID from the block
	// file name, length from the block file size, generation stamp from
	// the metadata file name (grandfather stamp when no metadata exists).
	Block *block.Block

	// BlockPath is the path of the block file
	BlockPath string

	// MetaPath is the path of the paired metadata file, empty when the
	// block has none
	MetaPath string
}

// Report is the result of one directory sweep.
type Report struct {
	// Entries lists discovered blocks ordered by block ID
	Entries []Entry

	// OrphanMetas lists metadata files whose block file is missing
	OrphanMetas []string

	// Unverified lists block files whose checksum could not be computed
	// during a verifying sweep
	Unverified []string

	// FilesSeen counts directory entries examined, matching or not
	FilesSeen int
}

// Scanner sweeps a single storage directory.
type Scanner struct {
	dir       string
	verify    bool
	logger    log.Logger
	collector stats.Collector
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger used during sweeps
func WithLogger(logger log.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithCollector sets the statistics collector
func WithCollector(collector stats.Collector) Option {
	return func(s *Scanner) { s.collector = collector }
}

// New creates a scanner for the block directory named by the configuration.
func New(cfg *config.Config, options ...Option) *Scanner {
	s := &Scanner{
		dir:       cfg.BlockDir,
		verify:    cfg.VerifyChecksums,
		logger:    log.GetDefaultLogger().WithField("component", "scanner"),
		collector: stats.NewCollector(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Collector exposes the scanner's statistics.
func (s *Scanner) Collector() stats.Collector { return s.collector }

// Scan sweeps the directory once. Cancellation is checked between
// directory entries; a canceled context aborts with ctx.Err(). Individual
// unreadable files degrade to log entries and report counters, never to a
// failed sweep.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	start := s.collector.StartScan()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		s.collector.TrackError("read_dir")
		return nil, fmt.Errorf("failed to read block directory: %w", err)
	}

	report := &Report{}
	blockFiles := make(map[string]int64) // name -> size
	var metaNames []string

	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() {
			continue
		}
		report.FilesSeen++

		name := de.Name()
		switch {
		case block.IsBlockFilename(name):
			info, err := de.Info()
			if err != nil {
				s.logger.Warn("skipping unreadable block file %s: %v", name, err)
				s.collector.TrackError("stat_block_file")
				continue
			}
			blockFiles[name] = info.Size()

		case block.IsMetaFilename(name):
			metaNames = append(metaNames, name)
		}
	}

	// Pair metadata files with their block files
	paired := make(map[string]string) // block file name -> meta name
	for _, metaName := range metaNames {
		blockName := block.MetaToBlockFile(metaName)
		if _, ok := blockFiles[blockName]; ok {
			paired[blockName] = metaName
			continue
		}
		s.logger.Warn("orphan metadata file %s has no block file", metaName)
		report.OrphanMetas = append(report.OrphanMetas, filepath.Join(s.dir, metaName))
	}

	for blockName, size := range blockFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		genStamp := block.GrandfatherGenerationStamp
		metaPath := ""
		if metaName, ok := paired[blockName]; ok {
			genStamp = block.GenerationStampFromMeta(metaName)
			metaPath = filepath.Join(s.dir, metaName)
		} else {
			s.logger.Debug("block file %s has no metadata file", blockName)
		}

		blockPath := filepath.Join(s.dir, blockName)
		b := block.NewBlock(block.Filename2ID(blockName), size, genStamp)

		if s.verify {
			ckStart := time.Now()
			b.SetChecksumFromFile(blockPath)
			s.collector.TrackOperationWithLatency(stats.OpChecksum, uint64(time.Since(ckStart).Nanoseconds()))
			if b.Checksum() == nil {
				s.logger.Warn("could not compute checksum for %s", blockPath)
				s.collector.TrackError("checksum_unavailable")
				report.Unverified = append(report.Unverified, blockPath)
			} else {
				s.collector.TrackBytes(false, uint64(size))
			}
		}

		report.Entries = append(report.Entries, Entry{
			Block:     b,
			BlockPath: blockPath,
			MetaPath:  metaPath,
		})
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		return block.Compare(report.Entries[i].Block, report.Entries[j].Block) < 0
	})
	sort.Strings(report.OrphanMetas)

	missing := 0
	for _, e := range report.Entries {
		if e.MetaPath == "" {
			missing++
		}
	}

	s.collector.TrackOperation(stats.OpScan)
	s.collector.FinishScan(start, stats.ScanSummary{
		FilesSeen:    uint64(report.FilesSeen),
		Blocks:       uint64(len(report.Entries)),
		OrphanMetas:  uint64(len(report.OrphanMetas)),
		MissingMetas: uint64(missing),
		Corrupt:      uint64(len(report.Unverified)),
	})
	s.logger.Info("sweep of %s found %d blocks, %d orphan metas, %d without metadata",
		s.dir, len(report.Entries), len(report.OrphanMetas), missing)

	return report, nil
}

// Blocks returns just the block descriptors of a report, in ID order.
func (r *Report) Blocks() []*block.Block {
	blocks := make([]*block.Block, len(r.Entries))
	for i, e := range r.Entries {
		blocks[i] = e.Block
	}
	return blocks
}
