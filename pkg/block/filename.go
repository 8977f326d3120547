package block

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Filename patterns. All matching is anchored full-string matching so a
// name that merely contains the prefix never parses. The block ID group
// admits a leading minus (legacy layouts encoded negative IDs in
// filenames); the generation stamp group does not.
var (
	blockFilePattern       = regexp.MustCompile(`^blk_(-?\d+)$`)
	metaFilePattern        = regexp.MustCompile(`^blk_(-?\d+)_(\d+)\.meta$`)
	metaOrBlockFilePattern = regexp.MustCompile(`^blk_(-?\d+)(_(\d+)\.meta)?$`)
)

// IsBlockFilename reports whether name is exactly a block file name
// (blk_<id>).
func IsBlockFilename(name string) bool {
	return blockFilePattern.MatchString(name)
}

// Filename2ID parses the block ID out of a block file name. It returns 0
// when the name does not match, which is indistinguishable from a valid
// block ID of 0; the legacy callers depend on that fallback. New call
// sites that need to tell the two apart should use TryFilename2ID.
func Filename2ID(name string) int64 {
	id, _ := TryFilename2ID(name)
	return id
}

// TryFilename2ID parses the block ID out of a block file name, reporting
// whether the name matched at all.
func TryFilename2ID(name string) (int64, bool) {
	m := blockFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsMetaFilename reports whether name is exactly a metadata file name
// (blk_<id>_<genstamp>.meta).
func IsMetaFilename(name string) bool {
	return metaFilePattern.MatchString(name)
}

// MetaToBlockFile derives the block file path from a metadata file path by
// dropping everything from the last underscore of the name onward. It is a
// pure string transform: no filesystem access, no check that the result
// exists.
func MetaToBlockFile(metaPath string) string {
	name := filepath.Base(metaPath)
	cut := strings.LastIndexByte(name, '_')
	if cut < 0 {
		return metaPath
	}
	return filepath.Join(filepath.Dir(metaPath), name[:cut])
}

// GenerationStampFromMeta parses the generation stamp out of a metadata
// file name, or returns the grandfather generation stamp when the name
// does not match.
func GenerationStampFromMeta(name string) int64 {
	m := metaFilePattern.FindStringSubmatch(name)
	if m == nil {
		return GrandfatherGenerationStamp
	}
	genStamp, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return GrandfatherGenerationStamp
	}
	return genStamp
}

// BlockIDFromName parses the block ID out of either a block file name or a
// metadata file name, returning 0 when neither pattern matches.
func BlockIDFromName(name string) int64 {
	m := metaOrBlockFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func baseName(path string) string {
	return filepath.Base(path)
}
