package container

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
)

// Limits bounds how much of an untrusted archive we are willing to
// inspect. Declared sizes are checked before any decompression happens,
// so a decompression bomb is rejected without paying for it.
type Limits struct {
	// MaxTotalBytes caps the sum of declared uncompressed entry sizes.
	MaxTotalBytes int64
	// MaxEntries caps the number of entries in the central directory.
	MaxEntries int
	// MaxEntryBytes caps the declared uncompressed size of one entry.
	MaxEntryBytes int64
}

// DefaultLimits are conservative bounds suitable for generated office
// documents, which are rarely larger than a few megabytes.
func DefaultLimits() Limits {
	return Limits{
		MaxTotalBytes: 64 << 20,
		MaxEntries:    1000,
		MaxEntryBytes: 32 << 20,
	}
}

// Entry describes one archive entry as declared by the central directory.
type Entry struct {
	Name             string
	CompressedSize   uint64
	UncompressedSize uint64
	Offset           int64
}

// Artifact is the parsed, immutable input of a verification run: the
// raw bytes plus the archive entry table. A run owns its Artifact
// exclusively; validators only ever read it.
type Artifact struct {
	data       []byte
	entries    []Entry
	index      map[string]*zip.File // first occurrence wins
	duplicates []string
	identity   string
}

// Open parses data as a zip container and builds the entry table,
// enforcing limits before any entry is decompressed.
func Open(data []byte, limits Limits) (*Artifact, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Kind: MalformedContainer, Detail: "not a zip container", Err: err}
	}
	if limits.MaxEntries > 0 && len(zr.File) > limits.MaxEntries {
		return nil, &Error{
			Kind:   ResourceLimitExceeded,
			Detail: fmt.Sprintf("%d entries exceeds limit %d", len(zr.File), limits.MaxEntries),
		}
	}

	a := &Artifact{
		data:  data,
		index: make(map[string]*zip.File, len(zr.File)),
	}
	var total int64
	for _, f := range zr.File {
		// A declared size past MaxInt64 would wrap negative and slip
		// under every limit below.
		if f.UncompressedSize64 > math.MaxInt64 {
			return nil, &Error{
				Kind:   ResourceLimitExceeded,
				Detail: fmt.Sprintf("entry %q declares an implausible uncompressed size", f.Name),
			}
		}
		declared := int64(f.UncompressedSize64)
		if limits.MaxEntryBytes > 0 && declared > limits.MaxEntryBytes {
			return nil, &Error{
				Kind:   ResourceLimitExceeded,
				Detail: fmt.Sprintf("entry %q declares %d bytes, limit %d", f.Name, declared, limits.MaxEntryBytes),
			}
		}
		if declared > math.MaxInt64-total {
			return nil, &Error{
				Kind:   ResourceLimitExceeded,
				Detail: "declared uncompressed total overflows",
			}
		}
		total += declared
		if limits.MaxTotalBytes > 0 && total > limits.MaxTotalBytes {
			return nil, &Error{
				Kind:   ResourceLimitExceeded,
				Detail: fmt.Sprintf("declared uncompressed total exceeds limit %d", limits.MaxTotalBytes),
			}
		}

		off, err := f.DataOffset()
		if err != nil {
			return nil, &Error{Kind: TruncatedArchive, Detail: fmt.Sprintf("entry %q: unreadable local header", f.Name), Err: err}
		}
		if off+int64(f.CompressedSize64) > int64(len(data)) {
			return nil, &Error{
				Kind:   TruncatedArchive,
				Detail: fmt.Sprintf("entry %q declares data past end of archive", f.Name),
			}
		}

		a.entries = append(a.entries, Entry{
			Name:             f.Name,
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
			Offset:           off,
		})
		if _, seen := a.index[f.Name]; seen {
			a.duplicates = append(a.duplicates, f.Name)
			continue
		}
		a.index[f.Name] = f
	}

	sum := sha256.Sum256(data)
	a.identity = hex.EncodeToString(sum[:])
	return a, nil
}

// Identity is the hex sha256 of the raw artifact bytes. It correlates
// reports across repeated scans of the same document.
func (a *Artifact) Identity() string { return a.identity }

// Bytes exposes the raw archive bytes (for external engine submission).
// Callers must not mutate the returned slice.
func (a *Artifact) Bytes() []byte { return a.data }

// Size is the raw archive size in bytes.
func (a *Artifact) Size() int64 { return int64(len(a.data)) }

// Entries returns the entry table in central-directory order,
// duplicates included.
func (a *Artifact) Entries() []Entry { return a.entries }

// DuplicateNames lists entry names that occur more than once, a known
// container-confusion trick: different readers may prefer different
// copies of the same name.
func (a *Artifact) DuplicateNames() []string { return a.duplicates }

// Has reports whether the archive contains an entry with the given name.
func (a *Artifact) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Open returns a lazy reader over one entry's decompressed bytes. The
// reader refuses to produce more bytes than the entry declared, so a
// lying local header cannot turn a single read into a bomb.
func (a *Artifact) Open(name string) (io.ReadCloser, error) {
	f, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("no such entry: %q", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &Error{Kind: TruncatedArchive, Detail: fmt.Sprintf("entry %q: %v", name, err), Err: err}
	}
	return &boundedReader{rc: rc, remaining: int64(f.UncompressedSize64), name: name}, nil
}

// ReadPart fully reads one entry. Validators that need the whole part
// use this; validators that stream use Open.
func (a *Artifact) ReadPart(name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// boundedReader enforces the declared uncompressed size on read.
type boundedReader struct {
	rc        io.ReadCloser
	remaining int64
	name      string
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		// Probe one byte: real data past the declared size means the
		// entry header lied about its length.
		var one [1]byte
		if n, _ := b.rc.Read(one[:]); n > 0 {
			return 0, &Error{Kind: TruncatedArchive, Detail: fmt.Sprintf("entry %q larger than declared size", b.name)}
		}
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func (b *boundedReader) Close() error { return b.rc.Close() }
