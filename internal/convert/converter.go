package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/stbtool/internal/room"
	"github.com/cory-johannsen/stbtool/internal/roomxml"
	"github.com/cory-johannsen/stbtool/internal/stb"
)

// ErrExists is returned when the destination exists and overwriting is off.
var ErrExists = errors.New("destination already exists")

// Options controls how documents are written.
type Options struct {
	// Dialect is the STB dialect used when writing STB output.
	Dialect stb.Dialect
	// Overwrite allows replacing existing destination files.
	Overwrite bool
	// Workers bounds the number of documents converted concurrently by Batch.
	Workers int
}

// DefaultOptions writes Afterbirth+ STB with four batch workers and refuses
// to overwrite.
func DefaultOptions() Options {
	return Options{Dialect: stb.DialectAfterbirthPlus, Workers: 4}
}

// Result describes one completed conversion.
type Result struct {
	Src      string
	Dst      string
	From     Format
	To       Format
	Rooms    int
	Entities int
	Elapsed  time.Duration
}

// Converter reads, validates, and writes room documents.
type Converter struct {
	logger *zap.Logger
	opts   Options
}

// New constructs a Converter.
//
// Postcondition: returns a non-nil Converter. A nil logger is replaced with a
// no-op logger and Workers below 1 is treated as 1.
func New(logger *zap.Logger, opts Options) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Converter{logger: logger, opts: opts}
}

// Decode parses data in the given format.
func (c *Converter) Decode(data []byte, f Format, logger *zap.Logger) (*room.File, error) {
	switch f {
	case FormatSTB:
		return stb.Decode(data, logger)
	case FormatXML:
		return roomxml.Decode(data, logger)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// Encode renders file in the given format.
func (c *Converter) Encode(file *room.File, f Format, logger *zap.Logger) ([]byte, error) {
	switch f {
	case FormatSTB:
		return stb.Encode(file, c.opts.Dialect, logger)
	case FormatXML:
		return roomxml.Marshal(file)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// ReadFile loads the document at path, detecting its format.
//
// Postcondition: returns the whole document and its format, or a non-nil
// error and no partial result.
func (c *Converter) ReadFile(path string) (*room.File, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FormatUnknown, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := DetectFormat(path, data)
	if err != nil {
		return nil, FormatUnknown, err
	}
	file, err := c.Decode(data, f, c.logger.With(zap.String("path", path)))
	if err != nil {
		return nil, f, fmt.Errorf("decoding %s: %w", path, err)
	}
	return file, f, nil
}

// WriteFile encodes file and replaces path with the result. The encoded
// bytes are decoded once more before writing, and the file is written
// through a temporary sibling and renamed, so path never holds a partial
// document.
func (c *Converter) WriteFile(path string, file *room.File, f Format) error {
	return c.writeFile(path, file, f, c.opts.Overwrite)
}

func (c *Converter) writeFile(path string, file *room.File, f Format, overwrite bool) error {
	if f == FormatUnknown {
		f = FormatForPath(path)
	}
	logger := c.logger.With(zap.String("path", path))
	data, err := c.Encode(file, f, logger)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	// Validate output is loadable before writing.
	if _, err := c.Decode(data, f, zap.NewNop()); err != nil {
		return fmt.Errorf("%s failed validation: %w", path, err)
	}
	return writeAtomic(path, data, overwrite)
}

// WritePreview writes rm as a single-room preview document.
func (c *Converter) WritePreview(path string, rm *room.Room) error {
	var buf bytes.Buffer
	if err := roomxml.EncodePreview(&buf, rm); err != nil {
		return fmt.Errorf("encoding preview %s: %w", path, err)
	}
	return writeAtomic(path, buf.Bytes(), true)
}

func writeAtomic(path string, data []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".roomconv-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Convert reads src and writes it to dst in format to. FormatUnknown picks
// the format from dst's extension.
//
// Precondition: src and dst must name different files.
// Postcondition: dst holds the complete converted document, or an error is
// returned and dst is untouched.
func (c *Converter) Convert(src, dst string, to Format) (Result, error) {
	return c.convert(src, dst, to, c.opts.Overwrite)
}

func (c *Converter) convert(src, dst string, to Format, overwrite bool) (Result, error) {
	t0 := time.Now()
	if to == FormatUnknown {
		to = FormatForPath(dst)
		if to == FormatUnknown {
			return Result{}, fmt.Errorf("%s: %w", dst, ErrUnknownFormat)
		}
	}
	if samePath(src, dst) {
		return Result{}, fmt.Errorf("source and destination are the same file: %s", src)
	}

	file, from, err := c.ReadFile(src)
	if err != nil {
		return Result{}, err
	}
	if err := c.writeFile(dst, file, to, overwrite); err != nil {
		return Result{}, err
	}

	res := Result{
		Src:      src,
		Dst:      dst,
		From:     from,
		To:       to,
		Rooms:    file.RoomCount(),
		Entities: file.EntityCount(),
		Elapsed:  time.Since(t0),
	}
	c.logger.Info("converted",
		zap.String("src", src),
		zap.String("dst", dst),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("rooms", res.Rooms),
		zap.Int("entities", res.Entities),
		zap.Duration("elapsed", res.Elapsed.Round(time.Millisecond)),
	)
	return res, nil
}

// DestPath returns the output path for src in outDir with format to.
func DestPath(src, outDir string, to Format) string {
	base := filepath.Base(src)
	return filepath.Join(outDir, base[:len(base)-len(filepath.Ext(base))]+to.Ext())
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
