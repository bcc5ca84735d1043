package generator

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/history"
	"github.com/aristath/lvglgen/internal/widgets"
)

// InputHash fingerprints everything that determines the output: the
// generator version, the configuration text and every file read while
// translating it.
func InputHash(config []byte, inputs []codegen.Input) string {
	h := sha256.New()
	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeField([]byte(Version))
	writeField(config)
	for _, in := range inputs {
		writeField([]byte(in.Name))
		writeField(in.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteFiles writes each file into dir through a temporary file and a
// rename, so readers never see a partially written source.
func WriteFiles(dir string, files []codegen.File) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, f := range files {
		if err := writeAtomic(filepath.Join(dir, f.Name), f.Content); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set mode of %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// FilesIntact reports whether every recorded file exists in dir with the
// recorded checksum.
func FilesIntact(dir string, files []history.FileEntry) bool {
	if len(files) == 0 {
		return false
	}
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.Name))
		if err != nil || len(data) != f.Size || checksum(data) != f.SHA256 {
			return false
		}
	}
	return true
}

// Previews renders one PNG per translated widget whose type supports it
// into dir and returns the written paths. A widget that cannot be rendered
// is skipped; its error is joined into the returned error once every other
// widget has been written.
func (g *Generator) Previews(out *Output, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}

	var (
		written []string
		failed  []error
	)
	for _, w := range out.Widgets {
		if !w.OK() {
			continue
		}
		p, ok := w.Type.(widgets.Previewer)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := p.Preview(&buf, w.Config); err != nil {
			g.log.Warn().Err(err).Str("widget", w.ID).Msg("Skipping preview")
			failed = append(failed, fmt.Errorf("failed to render preview of %s: %w", w.ID, err))
			continue
		}
		path := filepath.Join(dir, w.ID+".png")
		if err := writeAtomic(path, buf.Bytes()); err != nil {
			return written, err
		}
		written = append(written, path)
		g.log.Debug().Str("widget", w.ID).Str("path", path).Msg("Preview written")
	}
	return written, errors.Join(failed...)
}
