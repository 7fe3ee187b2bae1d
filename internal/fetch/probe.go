package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/desertthunder/plsync/internal/shared"
)

// Prober verifies a written file is playable audio and reports its decoded duration in seconds.
type Prober interface {
	Probe(ctx context.Context, path string) (int, error)
}

// ffprobeError wraps ffprobe failures with the command and its output.
type ffprobeError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *ffprobeError) Error() string {
	return fmt.Sprintf("ffprobe error: %s\nCommand: %s\nOutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *ffprobeError) Unwrap() error {
	return e.wrapped
}

func newFFprobeError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	return &ffprobeError{cmd: cmdStr, output: string(output), wrapped: err}
}

// FFprobe checks the container signature and then asks ffprobe for the duration.
//
// When the ffprobe binary is unavailable it falls back to the signature check alone and
// reports a duration of zero, which callers treat as unknown rather than invalid.
type FFprobe struct {
	bin string
}

// NewFFprobe locates ffprobe on PATH.
func NewFFprobe() *FFprobe {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		bin = ""
	}
	return &FFprobe{bin: bin}
}

func (p *FFprobe) Probe(ctx context.Context, path string) (int, error) {
	if err := SniffContainer(path); err != nil {
		return 0, err
	}
	if p.bin == "" {
		return 0, nil
	}

	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", shared.ErrIntegrity, newFFprobeError(cmd, out, err))
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("%w: unreadable ffprobe output: %v", shared.ErrIntegrity, err)
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("%w: zero duration", shared.ErrIntegrity)
	}
	return int(math.Round(secs)), nil
}

// SniffContainer reads the file header and rejects anything that is not a known audio container.
func SniffContainer(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file for validation: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("failed to read file header: %w", err)
	}
	header = header[:n]

	if n < 4 {
		return fmt.Errorf("%w: file too small to be audio", shared.ErrIntegrity)
	}

	switch {
	case bytes.HasPrefix(header, []byte("ID3")):
		return nil
	case header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return nil // mpeg frame sync
	case bytes.HasPrefix(header, []byte("RIFF")),
		bytes.HasPrefix(header, []byte("fLaC")),
		bytes.HasPrefix(header, []byte("OggS")):
		return nil
	case n >= 8 && string(header[4:8]) == "ftyp":
		return nil
	}

	lower := strings.ToLower(string(header[:min(n, 100)]))
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype") {
		return fmt.Errorf("%w: file is an HTML page", shared.ErrIntegrity)
	}
	return fmt.Errorf("%w: unrecognized container % x", shared.ErrIntegrity, header[:min(n, 16)])
}
