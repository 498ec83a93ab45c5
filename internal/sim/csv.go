package sim

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// CSVSource replays a recording stored as comma separated rows, one snapshot
// per row and one channel per column. Lines starting with '#' are skipped. A
// trailing partial block is dropped and Read reports io.EOF.
type CSVSource struct {
	r         *csv.Reader
	closer    io.Closer
	channels  int
	blockSize int
	row       int
}

// NewCSVSource reads blocks of blockSize rows with the given channel count.
func NewCSVSource(r io.Reader, channels, blockSize int) (*CSVSource, error) {
	if channels < 1 || blockSize < 2 {
		return nil, fmt.Errorf("sim: csv source needs channels >= 1 and block size >= 2, got %d and %d", channels, blockSize)
	}
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = channels
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	src := &CSVSource{r: cr, channels: channels, blockSize: blockSize}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src, nil
}

// OpenCSV opens a recording file.
func OpenCSV(path string, channels, blockSize int) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sim: open recording: %w", err)
	}
	src, err := NewCSVSource(f, channels, blockSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

func (s *CSVSource) Channels() int { return s.channels }

func (s *CSVSource) Read(ctx context.Context) (*mat.Dense, error) {
	block := mat.NewDense(s.blockSize, s.channels, nil)
	for i := 0; i < s.blockSize; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("sim: csv row %d: %w", s.row+1, err)
		}
		s.row++
		for c, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("sim: csv row %d column %d: %w", s.row, c+1, err)
			}
			block.Set(i, c, v)
		}
	}
	return block, nil
}

func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ReadMatrixCSV reads a square complex matrix, one row per line. Entries use
// Go complex syntax ("1", "0.5-2i", "(1+2i)"); '#' lines are comments.
func ReadMatrixCSV(r io.Reader) (*mat.CDense, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sim: matrix csv: %w", err)
	}
	n := len(records)
	if n == 0 {
		return nil, errors.New("sim: matrix csv is empty")
	}
	out := mat.NewCDense(n, n, nil)
	for i, rec := range records {
		if len(rec) != n {
			return nil, fmt.Errorf("sim: matrix csv row %d has %d entries, want %d", i+1, len(rec), n)
		}
		for j, field := range rec {
			v, err := strconv.ParseComplex(strings.TrimSpace(field), 128)
			if err != nil {
				return nil, fmt.Errorf("sim: matrix csv row %d column %d: %w", i+1, j+1, err)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// OpenMatrixCSV reads a matrix file with ReadMatrixCSV.
func OpenMatrixCSV(path string) (*mat.CDense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sim: open matrix: %w", err)
	}
	defer f.Close()
	return ReadMatrixCSV(f)
}
