package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/deep-leads/pkg/leads"
)

const (
	checkpointPrefix = "checkpoint_batch_"
	checkpointSuffix = ".json"
	progressFile     = "progress.json"
)

// ErrStaleCheckpoint is returned by Load when the saved batch belongs to a
// different sample set.
var ErrStaleCheckpoint = errors.New("checkpoint was written for different samples")

// Checkpoint is one saved batch of evaluation results.
type Checkpoint struct {
	BatchNum int `json:"batch_num"`
	// Fingerprint identifies the sample set the batch was run on.
	Fingerprint string         `json:"fingerprint"`
	Results     []SampleResult `json:"results"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Progress records which batches are done.
type Progress struct {
	Fingerprint      string    `json:"fingerprint"`
	CompletedBatches []int     `json:"completed_batches"`
	TotalResults     int       `json:"total_results"`
	Timestamp        time.Time `json:"timestamp"`
}

// Fingerprint hashes the samples so checkpoints from another sample set
// are not mixed into a run.
func Fingerprint(samples []leads.Sample) (string, error) {
	data, err := json.Marshal(samples)
	if err != nil {
		return "", fmt.Errorf("failed to encode samples: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Checkpointer persists batches under Dir so an interrupted run can resume.
type Checkpointer struct {
	Dir string
	now func() time.Time
}

func NewCheckpointer(dir string) (*Checkpointer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &Checkpointer{Dir: dir, now: time.Now}, nil
}

func (c *Checkpointer) batchPath(batch int) string {
	return filepath.Join(c.Dir, checkpointPrefix+strconv.Itoa(batch)+checkpointSuffix)
}

func (c *Checkpointer) timestamp() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// Save writes the results of one batch run on the samples identified by fingerprint.
func (c *Checkpointer) Save(batch int, fingerprint string, results []SampleResult) error {
	return writeJSON(c.batchPath(batch), Checkpoint{
		BatchNum:    batch,
		Fingerprint: fingerprint,
		Results:     results,
		Timestamp:   c.timestamp(),
	})
}

// Load returns the results of a saved batch, or nil when there is none.
// A batch saved under another fingerprint yields ErrStaleCheckpoint.
func (c *Checkpointer) Load(batch int, fingerprint string) ([]SampleResult, error) {
	data, err := os.ReadFile(c.batchPath(batch))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %d: %w", batch, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %d: %w", batch, err)
	}
	if cp.Fingerprint != fingerprint {
		return nil, fmt.Errorf("batch %d: %w", batch, ErrStaleCheckpoint)
	}
	return cp.Results, nil
}

// Batches lists the saved batch numbers in ascending order.
func (c *Checkpointer) Batches() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(c.Dir, checkpointPrefix+"*"+checkpointSuffix))
	if err != nil {
		return nil, err
	}
	var out []int
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), checkpointPrefix), checkpointSuffix)
		n, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func (c *Checkpointer) SaveProgress(fingerprint string, completed []int, totalResults int) error {
	return writeJSON(filepath.Join(c.Dir, progressFile), Progress{
		Fingerprint:      fingerprint,
		CompletedBatches: completed,
		TotalResults:     totalResults,
		Timestamp:        c.timestamp(),
	})
}

// LoadProgress returns the saved progress, or an empty Progress when there is none.
func (c *Checkpointer) LoadProgress() (Progress, error) {
	data, err := os.ReadFile(filepath.Join(c.Dir, progressFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Progress{CompletedBatches: []int{}}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("failed to read progress: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return Progress{}, fmt.Errorf("failed to decode progress: %w", err)
	}
	return p, nil
}

// Cleanup removes all checkpoint files and the progress file.
func (c *Checkpointer) Cleanup() error {
	batches, err := c.Batches()
	if err != nil {
		return err
	}
	var errs []error
	for _, b := range batches {
		if err := os.Remove(c.batchPath(b)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(filepath.Join(c.Dir, progressFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
