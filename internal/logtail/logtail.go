package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/five82/progwatch/internal/state"
)

// Read returns at most maxLines from the end of the file at path, split and
// trimmed the same way Tail.Next delivers them. A missing file yields no
// lines and no error.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := state.NewRing[string](maxLines)
	reader := bufio.NewReaderSize(file, readBufferSize)
	for {
		chunk, err := reader.ReadString('\n')
		if chunk != "" {
			ring.Add(trimEOL(chunk))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
	}
	return ring.Entries(), nil
}
