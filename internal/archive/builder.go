// Package archive fetches a selection of wallpapers in two bounded passes
// and packs whatever succeeded into a ZIP file.
package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"go-wallhaven-browser/internal/downloader"
	"go-wallhaven-browser/internal/helpers"
	"go-wallhaven-browser/internal/models"
	"go-wallhaven-browser/internal/origin"
	"go-wallhaven-browser/internal/paths"
	"go-wallhaven-browser/internal/retry"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoFallback marks an entity that failed the primary origin and has
	// no distinct secondary URL.
	ErrNoFallback = errors.New("no fallback origin available")
	// ErrNothingToDownload is returned for an empty selection.
	ErrNothingToDownload = errors.New("no wallpapers selected")
)

// DownloadError is the per-entity failure collected in a Report.
type DownloadError struct {
	ID  string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("wallpaper %s: %v", e.ID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Fetcher downloads one URL into memory. *downloader.Downloader satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Progress is reported after every finished item.
type Progress struct {
	Phase     int
	Done      int
	Total     int
	Succeeded int
	Failed    int
	LastID    string
	LastErr   error
}

// Options tunes a Builder. Zero values fall back to DefaultOptions.
type Options struct {
	Phase1Workers  int
	Phase1Attempts int
	Phase2Workers  int
	Phase2Attempts int
	// RetryDelay of zero retries immediately.
	RetryDelay     time.Duration
	EntryPattern   string
	SinglePattern  string
	Folder         string
	// WriteManifest adds a manifest.json describing the batch to archives.
	WriteManifest  bool

	Progress func(Progress)
	Status   *StatusTracker
	Now      func() time.Time
}

// DefaultOptions returns the stock worker counts and naming.
func DefaultOptions() Options {
	return Options{
		Phase1Workers:  4,
		Phase1Attempts: 2,
		Phase2Workers:  2,
		Phase2Attempts: 1,
		RetryDelay:     500 * time.Millisecond,
		EntryPattern:   "wallpaper-{id}",
		SinglePattern:  "wallhaven-{id}",
		Folder:         "wallpapers",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Phase1Workers <= 0 {
		o.Phase1Workers = d.Phase1Workers
	}
	if o.Phase1Attempts <= 0 {
		o.Phase1Attempts = d.Phase1Attempts
	}
	if o.Phase2Workers <= 0 {
		o.Phase2Workers = d.Phase2Workers
	}
	if o.Phase2Attempts <= 0 {
		o.Phase2Attempts = d.Phase2Attempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.EntryPattern == "" {
		o.EntryPattern = d.EntryPattern
	}
	if o.SinglePattern == "" {
		o.SinglePattern = d.SinglePattern
	}
	if o.Folder == "" {
		o.Folder = d.Folder
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Report summarises one batch.
type Report struct {
	BatchID      string
	SucceededIDs []string
	Failed       []*DownloadError
	// Checksums maps the stored file name to its BLAKE3 digest.
	Checksums map[string]string
	Bytes     int64
	// Path is the written archive or file; empty when nothing succeeded.
	Path string
}

// Builder runs the two download phases.
type Builder struct {
	fetcher  Fetcher
	rewriter origin.Rewriter
	opts     Options
}

// NewBuilder creates a Builder.
func NewBuilder(fetcher Fetcher, rewriter origin.Rewriter, opts Options) (*Builder, error) {
	opts = opts.withDefaults()
	if err := paths.ValidatePattern(opts.EntryPattern); err != nil {
		return nil, fmt.Errorf("entry pattern: %w", err)
	}
	if err := paths.ValidatePattern(opts.SinglePattern); err != nil {
		return nil, fmt.Errorf("single pattern: %w", err)
	}
	return &Builder{fetcher: fetcher, rewriter: rewriter, opts: opts}, nil
}

// job is one entity bound to its slot in the outcome list.
type job struct {
	index  int
	entity models.Wallpaper
	name   string
}

// Outcome is the immutable result for one slot.
type Outcome struct {
	Index    int
	ID       string
	Name     string
	Checksum string
	Size     int64
	Err      error
}

// OK reports whether the item was fetched.
func (o Outcome) OK() bool { return o.Err == nil }

// Merge returns phase1 with every slot present in phase2 replaced.
func Merge(phase1, phase2 []Outcome) []Outcome {
	merged := make([]Outcome, len(phase1))
	copy(merged, phase1)
	for _, o := range phase2 {
		if o.Index >= 0 && o.Index < len(merged) {
			merged[o.Index] = o
		}
	}
	return merged
}

// sink receives the bytes of a fetched item.
type sink func(ctx context.Context, j job, data []byte) error

// phase describes one pass over a job list.
type phase struct {
	number   int
	workers  int
	attempts int
	urlFor   func(models.Wallpaper) (string, error)
}

// dedupe drops repeated ids and assigns stable names.
func dedupe(entities []models.Wallpaper, pattern, folder string) ([]job, error) {
	seen := make(map[string]struct{}, len(entities))
	jobs := make([]job, 0, len(entities))
	for _, e := range entities {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		name, err := paths.FileName(pattern, e, len(jobs)+1)
		if err != nil {
			return nil, err
		}
		if folder != "" {
			name = path.Join(folder, name)
		}
		jobs = append(jobs, job{index: len(jobs), entity: e, name: name})
	}
	return jobs, nil
}

func (b *Builder) primaryURL(e models.Wallpaper) (string, error) {
	if e.FullImageURL == "" {
		return "", errors.New("wallpaper has no image URL")
	}
	return b.rewriter.ProxiedDownload(e.FullImageURL), nil
}

func (b *Builder) fallbackURL(e models.Wallpaper) (string, error) {
	alt := b.rewriter.Fallback(e.FullImageURL)
	if alt == "" {
		return "", ErrNoFallback
	}
	return alt, nil
}

// runPhase fans jobs out to p.workers goroutines and returns one outcome per
// job, in job order.
func (b *Builder) runPhase(ctx context.Context, p phase, jobs []job, out sink, tally *tally) []Outcome {
	results := make([]Outcome, len(jobs))
	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)

	workers := p.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logPrefix := fmt.Sprintf("Phase%d-Worker-%d", p.number, id)
			for i := range queue {
				results[i] = b.process(ctx, logPrefix, p, jobs[i], out)
				tally.record(p.number, results[i])
			}
		}(w)
	}
	wg.Wait()
	return results
}

func (b *Builder) process(ctx context.Context, logPrefix string, p phase, j job, out sink) Outcome {
	res := Outcome{Index: j.index, ID: j.entity.ID, Name: j.name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	url, err := p.urlFor(j.entity)
	if err != nil {
		log.Debugf("[%s] %s: %v", logPrefix, j.entity.ID, err)
		res.Err = err
		return res
	}

	data, err := retry.Do(ctx, p.attempts, b.opts.RetryDelay, func(ctx context.Context) ([]byte, error) {
		return b.fetcher.Fetch(ctx, url)
	})
	if err != nil {
		log.WithError(err).Warnf("[%s] Failed to fetch %s from %s", logPrefix, j.entity.ID, url)
		res.Err = err
		return res
	}

	if err := out(ctx, j, data); err != nil {
		res.Err = err
		return res
	}
	res.Checksum = helpers.Blake3Hex(data)
	res.Size = int64(len(data))
	log.Debugf("[%s] Fetched %s (%s)", logPrefix, j.entity.ID, helpers.BytesToSize(uint64(len(data))))
	return res
}

// run executes both phases. Phase 2 starts only after every phase 1 worker
// has returned.
func (b *Builder) run(ctx context.Context, jobs []job, out sink) []Outcome {
	t := &tally{total: len(jobs), progress: b.opts.Progress}

	first := b.runPhase(ctx, phase{number: 1, workers: b.opts.Phase1Workers, attempts: b.opts.Phase1Attempts, urlFor: b.primaryURL}, jobs, out, t)

	var retryJobs []job
	for _, o := range first {
		if !o.OK() {
			retryJobs = append(retryJobs, jobs[o.Index])
		}
	}
	if len(retryJobs) == 0 || ctx.Err() != nil {
		return first
	}

	log.Infof("[Archive] %d of %d failed on the primary origin, trying fallback", len(retryJobs), len(jobs))
	second := b.runPhase(ctx, phase{number: 2, workers: b.opts.Phase2Workers, attempts: b.opts.Phase2Attempts, urlFor: b.fallbackURL}, retryJobs, out, t)
	return Merge(first, second)
}

func newReport(outcomes []Outcome) *Report {
	r := &Report{BatchID: uuid.NewString(), Checksums: make(map[string]string)}
	for _, o := range outcomes {
		if o.OK() {
			r.SucceededIDs = append(r.SucceededIDs, o.ID)
			r.Checksums[o.Name] = o.Checksum
			r.Bytes += o.Size
			continue
		}
		r.Failed = append(r.Failed, &DownloadError{ID: o.ID, Err: o.Err})
	}
	return r
}

type zipEntry struct {
	name string
	data []byte
}

// BuildArchive fetches entities and writes a ZIP of the successes to w.
// Individual failures end up in the report. Only a cancelled context or a
// failing writer makes the call fail.
func (b *Builder) BuildArchive(ctx context.Context, entities []models.Wallpaper, w io.Writer) (*Report, error) {
	jobs, err := dedupe(entities, b.opts.EntryPattern, b.opts.Folder)
	if err != nil {
		return nil, err
	}

	zw := zip.NewWriter(w)
	entries := make(chan zipEntry)
	writeErr := make(chan error, 1)
	modified := b.opts.Now()

	go func() {
		var firstErr error
		started := false
		for e := range entries {
			if firstErr != nil {
				continue
			}
			if !started && b.opts.Status != nil {
				b.opts.Status.Zipping()
			}
			started = true
			fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: modified})
			if err == nil {
				_, err = fw.Write(e.data)
			}
			if err != nil {
				log.WithError(err).Errorf("[Archive] Failed to add %s", e.name)
				firstErr = err
			}
		}
		writeErr <- firstErr
	}()

	add := func(ctx context.Context, j job, data []byte) error {
		select {
		case entries <- zipEntry{name: j.name, data: data}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	outcomes := b.run(ctx, jobs, add)
	close(entries)
	if err := <-writeErr; err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := newReport(outcomes)
	if b.opts.WriteManifest && len(report.SucceededIDs) > 0 {
		if err := writeManifest(zw, path.Join(b.opts.Folder, ManifestName), modified, report, outcomes); err != nil {
			return nil, fmt.Errorf("writing manifest: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	return report, nil
}

// ManifestName is the archive entry written when Options.WriteManifest is set.
const ManifestName = "manifest.json"

type manifestEntry struct {
	ID     string `json:"id"`
	File   string `json:"file,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Blake3 string `json:"blake3,omitempty"`
	Error  string `json:"error,omitempty"`
}

type manifest struct {
	BatchID   string          `json:"batchId"`
	CreatedAt time.Time       `json:"createdAt"`
	Entries   []manifestEntry `json:"entries"`
}

func writeManifest(zw *zip.Writer, name string, created time.Time, r *Report, outcomes []Outcome) error {
	m := manifest{BatchID: r.BatchID, CreatedAt: created.UTC()}
	for _, o := range outcomes {
		e := manifestEntry{ID: o.ID}
		if o.OK() {
			e.File, e.Size, e.Blake3 = o.Name, o.Size, o.Checksum
		} else {
			e.Error = o.Err.Error()
		}
		m.Entries = append(m.Entries, e)
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: created})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(fw)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// Download saves a single entity directly and anything larger as a ZIP in
// outDir. When a StatusTracker is configured it is driven through the batch.
func (b *Builder) Download(ctx context.Context, entities []models.Wallpaper, outDir string) (report *Report, err error) {
	if len(entities) == 0 {
		return nil, ErrNothingToDownload
	}
	if st := b.opts.Status; st != nil {
		if err := st.Begin(); err != nil {
			return nil, err
		}
		defer func() { st.Finish(err) }()
	}
	if !helpers.CheckAndMakeDir(outDir) {
		return nil, fmt.Errorf("%w: cannot create %s", downloader.ErrFileSystem, outDir)
	}

	if len(entities) == 1 {
		return b.downloadSingle(ctx, entities[0], outDir)
	}
	return b.downloadArchive(ctx, entities, outDir)
}

func (b *Builder) downloadSingle(ctx context.Context, e models.Wallpaper, outDir string) (*Report, error) {
	jobs, err := dedupe([]models.Wallpaper{e}, b.opts.SinglePattern, "")
	if err != nil {
		return nil, err
	}

	target := filepath.Join(outDir, filepath.FromSlash(jobs[0].name))
	existing, found, err := downloader.ExistingFile(target, e.FileSize)
	if err != nil {
		return nil, err
	}
	if found {
		log.Infof("[Archive] %s is already on disk as %s, skipping download", e.ID, existing)
		report := newReport(nil)
		report.SucceededIDs = []string{e.ID}
		report.Path = existing
		return report, nil
	}

	var saved string
	save := func(_ context.Context, j job, data []byte) error {
		p, err := downloader.SaveBytes(target, data)
		if err != nil {
			return err
		}
		saved = p
		return nil
	}

	outcomes := b.run(ctx, jobs, save)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := newReport(outcomes)
	report.Path = saved
	if len(report.Failed) > 0 {
		return report, report.Failed[0]
	}
	log.Infof("[Archive] Saved %s", saved)
	return report, nil
}

func (b *Builder) downloadArchive(ctx context.Context, entities []models.Wallpaper, outDir string) (*Report, error) {
	name := fmt.Sprintf("%s-%s.zip", b.opts.Folder, b.opts.Now().Format("20060102-150405"))
	target := filepath.Join(outDir, name)

	tmp, err := os.CreateTemp(outDir, name+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: creating archive: %v", downloader.ErrFileSystem, err)
	}
	defer os.Remove(tmp.Name())

	report, err := b.BuildArchive(ctx, entities, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: closing archive: %v", downloader.ErrFileSystem, cerr)
	}
	if err != nil {
		return nil, err
	}

	if len(report.SucceededIDs) == 0 {
		log.Warnf("[Archive] Nothing could be downloaded, no archive written")
		return report, nil
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return nil, fmt.Errorf("%w: renaming archive: %v", downloader.ErrFileSystem, err)
	}
	report.Path = target
	log.Infof("[Archive] Wrote %s with %d of %d wallpapers", target, len(report.SucceededIDs), len(report.SucceededIDs)+len(report.Failed))
	return report, nil
}

// tally aggregates progress across both phases.
type tally struct {
	mu        sync.Mutex
	total     int
	done      int
	succeeded int
	failed    int
	progress  func(Progress)
}

// record counts phase 1 failures as pending: they are retried in phase 2,
// so only their final outcome moves the done counter.
func (t *tally) record(phase int, o Outcome) {
	t.mu.Lock()
	switch {
	case o.OK():
		t.done++
		t.succeeded++
	case phase == 2:
		t.done++
		t.failed++
	}
	p := Progress{Phase: phase, Done: t.done, Total: t.total, Succeeded: t.succeeded, Failed: t.failed, LastID: o.ID, LastErr: o.Err}
	cb := t.progress
	t.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}
