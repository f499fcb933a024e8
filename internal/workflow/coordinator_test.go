package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"stlpipe/internal/config"
	"stlpipe/internal/extract"
	"stlpipe/internal/logging"
	"stlpipe/internal/publish"
	"stlpipe/internal/testsupport"
	"stlpipe/internal/workflow"
)

type fakeStorage struct {
	mu         sync.Mutex
	uploadErrs []error
	shareErrs  []error
	uploads    int
	shares     int
	paths      []string
}

func (s *fakeStorage) Upload(_ context.Context, localPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if len(s.uploadErrs) > 0 {
		err := s.uploadErrs[0]
		s.uploadErrs = s.uploadErrs[1:]
		return "", err
	}
	s.paths = append(s.paths, localPath)
	return "remote-" + filepath.Base(localPath), nil
}

func (s *fakeStorage) SetPublicReadable(_ context.Context, remoteID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares++
	if len(s.shareErrs) > 0 {
		err := s.shareErrs[0]
		s.shareErrs = s.shareErrs[1:]
		return "", err
	}
	return "https://drive.example/" + remoteID, nil
}

func (s *fakeStorage) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads, s.shares
}

// blockingExtractor holds every extraction until release is closed or the
// context ends.
type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingExtractor() *blockingExtractor {
	return &blockingExtractor{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingExtractor) Extract(ctx context.Context, _ string, destDir string) (*extract.Result, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return &extract.Result{}, ctx.Err()
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	return &extract.Result{Format: extract.FormatZip}, nil
}

func newCoordinator(t *testing.T, cfg *config.Config, storage *fakeStorage, opts ...workflow.Option) *workflow.Coordinator {
	t.Helper()
	base := []workflow.Option{
		workflow.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}
	if storage != nil {
		base = append(base, workflow.WithPublisher(publish.NewPublisher(storage, logging.NewNop())))
	}
	c := workflow.New(cfg, logging.NewNop(), append(base, opts...)...)
	t.Cleanup(c.Shutdown)
	return c
}

func writeArtifact(t *testing.T, cfg *config.Config, name string, entries ...testsupport.ZipEntry) workflow.Artifact {
	t.Helper()
	path := testsupport.WriteZip(t, filepath.Join(cfg.Watch.InboxDir, name), entries...)
	art, err := workflow.NewArtifact(path)
	if err != nil {
		t.Fatalf("NewArtifact: %v", err)
	}
	return art
}

func modelsV2(t *testing.T, cfg *config.Config) workflow.Artifact {
	return writeArtifact(t, cfg, "models_v2.zip",
		testsupport.Entry("photo1.jpg", "jpeg"),
		testsupport.Entry("part_a.stl", "solid a"),
		testsupport.Entry("notes.txt", "read me"),
		testsupport.Entry("../escape.stl", "solid escape"),
	)
}

func states(job *workflow.Job) []workflow.State {
	out := make([]workflow.State, 0, len(job.History))
	for _, tr := range job.History {
		out = append(out, tr.To)
	}
	return out
}

func scratchEntries(t *testing.T, cfg *config.Config) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.ScratchDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read scratch dir: %v", err)
	}
	return entries
}

func TestRunModelsV2EndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storage := &fakeStorage{}
	c := newCoordinator(t, cfg, storage)

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateDone {
		t.Fatalf("expected done, got %s (%s: %v)", job.State, job.Reason, job.Err)
	}
	want := []workflow.State{
		workflow.StateQueued,
		workflow.StateExtracting,
		workflow.StateSorting,
		workflow.StateUploading,
		workflow.StatePublishingLink,
		workflow.StateDone,
	}
	if got := states(job); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions %v", got)
	}

	projectDir := filepath.Join(cfg.Paths.OutputDir, "models_v2")
	if _, err := os.Stat(filepath.Join(projectDir, "Images", "models_v2_photo1.jpg")); err != nil {
		t.Fatalf("expected flattened image: %v", err)
	}
	archive := filepath.Join(projectDir, "models_v2_STL.zip")
	if got := testsupport.ZipNames(t, archive); !reflect.DeepEqual(got, []string{"part_a.stl"}) {
		t.Fatalf("unexpected archive members %v", got)
	}
	if job.Rejected != 1 {
		t.Fatalf("expected traversal entry rejected, got %d", job.Rejected)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ScratchDir, "escape.stl")); !os.IsNotExist(err) {
		t.Fatalf("traversal entry escaped: %v", err)
	}

	if job.Link != "https://drive.example/remote-models_v2_STL.zip" {
		t.Fatalf("unexpected link %q", job.Link)
	}
	descriptor, err := os.ReadFile(filepath.Join(projectDir, "link_download_here.txt"))
	if err != nil {
		t.Fatalf("read descriptor: %v", err)
	}
	if !strings.Contains(string(descriptor), job.Link) || !strings.Contains(string(descriptor), "Artifact: models_v2.zip") {
		t.Fatalf("unexpected descriptor %q", descriptor)
	}
	if entries := scratchEntries(t, cfg); len(entries) != 0 {
		t.Fatalf("expected workspace removed, found %d entries", len(entries))
	}
	if c.Registry().Len() != 0 {
		t.Fatalf("expected registry empty after job")
	}
}

func TestSequentialRerunReplacesBundle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storage := &fakeStorage{}
	c := newCoordinator(t, cfg, storage)
	art := modelsV2(t, cfg)

	first := c.Run(context.Background(), art)
	second := c.Run(context.Background(), art)

	for _, job := range []*workflow.Job{first, second} {
		if job.State != workflow.StateDone {
			t.Fatalf("expected done, got %s (%v)", job.State, job.Err)
		}
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct job ids")
	}
	if first.Bundle.ArchivePath != second.Bundle.ArchivePath {
		t.Fatalf("expected same archive path, got %s and %s", first.Bundle.ArchivePath, second.Bundle.ArchivePath)
	}
	images, err := os.ReadDir(second.Bundle.ImagesDir)
	if err != nil {
		t.Fatalf("read images: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected rerun to replace images, found %d", len(images))
	}
	if got := testsupport.ZipNames(t, second.Bundle.ArchivePath); !reflect.DeepEqual(got, []string{"part_a.stl"}) {
		t.Fatalf("unexpected archive members after rerun %v", got)
	}
	if uploads, _ := storage.counts(); uploads != 2 {
		t.Fatalf("expected two uploads, got %d", uploads)
	}
}

func TestConcurrentDuplicateIsSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	extractor := newBlockingExtractor()
	c := newCoordinator(t, cfg, &fakeStorage{}, workflow.WithExtractor(extractor))
	art := modelsV2(t, cfg)

	first := c.Submit(context.Background(), art)
	second := c.Submit(context.Background(), art)

	select {
	case <-second.Done():
	default:
		t.Fatal("duplicate ticket should finish synchronously")
	}
	dup, err := second.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if dup.State != workflow.StateSkippedDuplicate || dup.Reason != workflow.ReasonDuplicateInFlight {
		t.Fatalf("expected skipped duplicate, got %s/%s", dup.State, dup.Reason)
	}
	if !errors.Is(dup.Err, workflow.ErrDuplicateInFlight) {
		t.Fatalf("expected ErrDuplicateInFlight, got %v", dup.Err)
	}

	close(extractor.release)
	job, err := first.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.State != workflow.StateDone {
		t.Fatalf("expected first job done, got %s (%v)", job.State, job.Err)
	}

	third := c.Run(context.Background(), art)
	if third.State == workflow.StateSkippedDuplicate {
		t.Fatal("artifact should be accepted again once the first job finished")
	}
}

func TestZeroModelsCompletesWithWarning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storage := &fakeStorage{}
	c := newCoordinator(t, cfg, storage)
	art := writeArtifact(t, cfg, "renders.zip", testsupport.Entry("front.png", "png"))

	job := c.Run(context.Background(), art)

	if job.State != workflow.StateDone {
		t.Fatalf("expected done, got %s (%v)", job.State, job.Err)
	}
	if len(job.Warnings) == 0 {
		t.Fatal("expected a warning for an archive without models")
	}
	if uploads, _ := storage.counts(); uploads != 0 {
		t.Fatalf("expected upload skipped, got %d uploads", uploads)
	}
	if job.Link != "" {
		t.Fatalf("expected no link, got %q", job.Link)
	}
}

func TestUploadDisabledStopsAfterSorting(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUploadDisabled())
	storage := &fakeStorage{}
	c := newCoordinator(t, cfg, storage)

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateDone {
		t.Fatalf("expected done, got %s (%v)", job.State, job.Err)
	}
	if got := states(job); got[len(got)-2] != workflow.StateSorting {
		t.Fatalf("expected done straight after sorting, got %v", got)
	}
	if uploads, _ := storage.counts(); uploads != 0 {
		t.Fatalf("expected no uploads, got %d", uploads)
	}
}

func TestUploadRetryPolicy(t *testing.T) {
	transient := publish.Transient("upload", errors.New("503 backend error"))
	tests := []struct {
		name        string
		maxAttempts int
		uploadErrs  []error
		wantState   workflow.State
		wantReason  workflow.Reason
		wantUploads int
	}{
		{
			name:        "recovers after two transient failures",
			maxAttempts: 3,
			uploadErrs:  []error{transient, transient},
			wantState:   workflow.StateDone,
			wantUploads: 3,
		},
		{
			name:        "exhausts attempts",
			maxAttempts: 3,
			uploadErrs:  []error{transient, transient, transient, transient},
			wantState:   workflow.StateFailed,
			wantReason:  workflow.ReasonUploadExhausted,
			wantUploads: 3,
		},
		{
			name:        "unclassified errors are transient",
			maxAttempts: 2,
			uploadErrs:  []error{errors.New("connection reset"), errors.New("connection reset")},
			wantState:   workflow.StateFailed,
			wantReason:  workflow.ReasonUploadExhausted,
			wantUploads: 2,
		},
		{
			name:        "quota is not retried",
			maxAttempts: 3,
			uploadErrs:  []error{publish.Quota("upload", errors.New("storageQuotaExceeded"))},
			wantState:   workflow.StateFailed,
			wantReason:  workflow.ReasonQuotaExceeded,
			wantUploads: 1,
		},
		{
			name:        "permission is not retried",
			maxAttempts: 3,
			uploadErrs:  []error{publish.PermissionDenied("upload", errors.New("403"))},
			wantState:   workflow.StateFailed,
			wantReason:  workflow.ReasonPermissionDenied,
			wantUploads: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cfg.Upload.MaxAttempts = tc.maxAttempts
			storage := &fakeStorage{uploadErrs: tc.uploadErrs}
			c := newCoordinator(t, cfg, storage)

			job := c.Run(context.Background(), modelsV2(t, cfg))

			if job.State != tc.wantState || job.Reason != tc.wantReason {
				t.Fatalf("got %s/%s (%v), want %s/%s", job.State, job.Reason, job.Err, tc.wantState, tc.wantReason)
			}
			if uploads, _ := storage.counts(); uploads != tc.wantUploads {
				t.Fatalf("expected %d upload attempts, got %d", tc.wantUploads, uploads)
			}
		})
	}
}

func TestMissingPublisherIsPermissionDenied(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newCoordinator(t, cfg, nil)

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateFailed || job.Reason != workflow.ReasonPermissionDenied {
		t.Fatalf("expected permission_denied, got %s/%s", job.State, job.Reason)
	}
}

func TestLinkFailureKeepsArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storage := &fakeStorage{shareErrs: []error{publish.PermissionDenied("share", errors.New("sharing disabled by domain policy"))}}
	c := newCoordinator(t, cfg, storage)

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateFailed || job.Reason != workflow.ReasonLinkPublishFailed {
		t.Fatalf("expected link_publish_failed, got %s/%s", job.State, job.Reason)
	}
	if job.RemoteID == "" {
		t.Fatal("expected uploaded remote id kept on the job")
	}
	if _, err := os.Stat(job.Bundle.ArchivePath); err != nil {
		t.Fatalf("expected local archive kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(job.Bundle.ProjectDir, "link_download_here.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected no descriptor, got %v", err)
	}
}

func TestShareRetriesTransientFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storage := &fakeStorage{shareErrs: []error{errors.New("502 bad gateway")}}
	c := newCoordinator(t, cfg, storage)

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateDone {
		t.Fatalf("expected done, got %s (%v)", job.State, job.Err)
	}
	if _, shares := storage.counts(); shares != 2 {
		t.Fatalf("expected two share attempts, got %d", shares)
	}
}

func TestDeleteLocalAfterUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.DeleteLocalAfterUpload = true
	c := newCoordinator(t, cfg, &fakeStorage{})

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateDone {
		t.Fatalf("expected done, got %s (%v)", job.State, job.Err)
	}
	if _, err := os.Stat(job.Bundle.ArchivePath); !os.IsNotExist(err) {
		t.Fatalf("expected local archive removed, got %v", err)
	}
	if _, err := os.Stat(job.DescriptorPath); err != nil {
		t.Fatalf("expected descriptor kept: %v", err)
	}
}

func TestNoCleanupKeepsWorkspace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newCoordinator(t, cfg, &fakeStorage{}, workflow.WithCleanup(false))

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateDone {
		t.Fatalf("expected done, got %s (%v)", job.State, job.Err)
	}
	if _, err := os.Stat(filepath.Join(job.Workspace, "extract", "part_a.stl")); err != nil {
		t.Fatalf("expected workspace kept: %v", err)
	}
}

func TestExtractionFailureReasons(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, cfg *config.Config) string
		reason workflow.Reason
	}{
		{
			name: "missing unrar",
			setup: func(t *testing.T, cfg *config.Config) string {
				cfg.Extraction.UnrarBinary = filepath.Join(testsupport.BaseDir(cfg), "no-such-unrar")
				path := filepath.Join(cfg.Watch.InboxDir, "pack.rar")
				testsupport.WriteBytes(t, path, []byte("Rar!\x1a\x07\x01\x00payload"))
				return path
			},
			reason: workflow.ReasonCapabilityUnavailable,
		},
		{
			name: "format mismatch",
			setup: func(t *testing.T, cfg *config.Config) string {
				path := filepath.Join(cfg.Watch.InboxDir, "fake.zip")
				testsupport.WriteBytes(t, path, []byte("Rar!\x1a\x07\x00data"))
				return path
			},
			reason: workflow.ReasonFormatMismatch,
		},
		{
			name: "corrupt rar",
			setup: func(t *testing.T, cfg *config.Config) string {
				cfg.Extraction.UnrarBinary = testsupport.WriteScript(t, filepath.Join(testsupport.BaseDir(cfg), "bin"), "unrar",
					"echo 'pack.rar: checksum error' >&2\nexit 3\n")
				path := filepath.Join(cfg.Watch.InboxDir, "pack.rar")
				testsupport.WriteBytes(t, path, []byte("Rar!\x1a\x07\x01\x00payload"))
				return path
			},
			reason: workflow.ReasonCorruptArchive,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			path := tc.setup(t, cfg)
			storage := &fakeStorage{}
			c := newCoordinator(t, cfg, storage)
			art, err := workflow.NewArtifact(path)
			if err != nil {
				t.Fatalf("NewArtifact: %v", err)
			}

			job := c.Run(context.Background(), art)

			if job.State != workflow.StateFailed || job.Reason != tc.reason {
				t.Fatalf("got %s/%s (%v), want failed/%s", job.State, job.Reason, job.Err, tc.reason)
			}
			if uploads, _ := storage.counts(); uploads != 0 {
				t.Fatalf("expected no upload, got %d", uploads)
			}
			if entries := scratchEntries(t, cfg); len(entries) != 0 {
				t.Fatalf("expected workspace removed after failure, found %d entries", len(entries))
			}
		})
	}
}

func TestExtractionTimeoutIsCorrupt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Extraction.TimeoutSeconds = 1
	c := newCoordinator(t, cfg, &fakeStorage{}, workflow.WithExtractor(newBlockingExtractor()))

	job := c.Run(context.Background(), modelsV2(t, cfg))

	if job.State != workflow.StateFailed || job.Reason != workflow.ReasonCorruptArchive {
		t.Fatalf("expected corrupt_archive on timeout, got %s/%s", job.State, job.Reason)
	}
}

func TestCancellingSubmitContextCancelsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	extractor := newBlockingExtractor()
	c := newCoordinator(t, cfg, &fakeStorage{}, workflow.WithExtractor(extractor))
	ctx, cancel := context.WithCancel(context.Background())

	ticket := c.Submit(ctx, modelsV2(t, cfg))
	<-extractor.started
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	job, err := ticket.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.State != workflow.StateFailed || job.Reason != workflow.ReasonCancelled {
		t.Fatalf("expected cancelled, got %s/%s", job.State, job.Reason)
	}
	if entries := scratchEntries(t, cfg); len(entries) != 0 {
		t.Fatalf("expected workspace removed, found %d entries", len(entries))
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "models_v2")); !os.IsNotExist(err) {
		t.Fatalf("expected no bundle for a cancelled job, got %v", err)
	}
}

func TestShutdownCancelsRunningJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	extractor := newBlockingExtractor()
	c := newCoordinator(t, cfg, &fakeStorage{}, workflow.WithExtractor(extractor))

	ticket := c.Submit(context.Background(), modelsV2(t, cfg))
	<-extractor.started
	c.Shutdown()

	select {
	case <-ticket.Done():
	default:
		t.Fatal("Shutdown returned before the job finished")
	}
	job, _ := ticket.Wait(context.Background())
	if job.Reason != workflow.ReasonCancelled {
		t.Fatalf("expected cancelled, got %s", job.Reason)
	}

	late := c.Run(context.Background(), modelsV2(t, cfg))
	if late.State != workflow.StateFailed || late.Reason != workflow.ReasonCancelled {
		t.Fatalf("expected submissions after shutdown rejected, got %s/%s", late.State, late.Reason)
	}
}

func TestWorkerLimitSerializesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	extractor := newBlockingExtractor()
	c := newCoordinator(t, cfg, &fakeStorage{}, workflow.WithExtractor(extractor), workflow.WithWorkers(1))

	first := c.Submit(context.Background(), writeArtifact(t, cfg, "a.zip", testsupport.Entry("a.stl", "a")))
	second := c.Submit(context.Background(), writeArtifact(t, cfg, "b.zip", testsupport.Entry("b.stl", "b")))
	<-extractor.started

	time.Sleep(50 * time.Millisecond)
	if c.Registry().Len() != 2 {
		t.Fatalf("expected both artifacts registered, got %d", c.Registry().Len())
	}
	select {
	case <-second.Done():
		t.Fatal("second job finished while the only worker was busy")
	default:
	}

	close(extractor.release)
	c.Wait()
	for _, ticket := range []*workflow.Ticket{first, second} {
		job, _ := ticket.Wait(context.Background())
		if job.State != workflow.StateDone {
			t.Fatalf("expected done, got %s (%v)", job.State, job.Err)
		}
	}
}

func TestArtifactKey(t *testing.T) {
	tests := []struct {
		art  workflow.Artifact
		want string
	}{
		{art: workflow.Artifact{Name: "a.zip", Size: 42}, want: "a.zip:42"},
		{art: workflow.Artifact{Name: "a.zip", Size: 42, EventID: "tg-17"}, want: "event:tg-17"},
	}
	for _, tc := range tests {
		if got := tc.art.Key(); got != tc.want {
			t.Fatalf("Key() = %q, want %q", got, tc.want)
		}
	}
}

func TestSameStemArtifactsRunConcurrently(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUploadDisabled())
	cfg.Workflow.Workers = 2
	c := newCoordinator(t, cfg, nil)

	var arts []workflow.Artifact
	for i, dir := range []string{"from-chat", "from-inbox"} {
		entries := []testsupport.ZipEntry{
			testsupport.Entry("cover.jpg", "jpeg"),
			testsupport.Entry("body.stl", "solid body"),
		}
		if i == 1 {
			entries = append(entries, testsupport.Entry("notes.txt", "printed at 0.12mm"))
		}
		path := testsupport.WriteZip(t, filepath.Join(cfg.Watch.InboxDir, dir, "dragon.zip"), entries...)
		art, err := workflow.NewArtifact(path)
		if err != nil {
			t.Fatalf("NewArtifact: %v", err)
		}
		arts = append(arts, art)
	}
	if arts[0].Key() == arts[1].Key() {
		t.Fatalf("fixtures must have distinct keys, both %q", arts[0].Key())
	}

	for round := range 10 {
		tickets := []*workflow.Ticket{
			c.Submit(context.Background(), arts[0]),
			c.Submit(context.Background(), arts[1]),
		}
		for _, ticket := range tickets {
			job, err := ticket.Wait(context.Background())
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
			if job.State != workflow.StateDone {
				t.Fatalf("round %d: %s ended %s/%s (%v)", round, job.Artifact.Path, job.State, job.Reason, job.Err)
			}
		}
	}
	archive := filepath.Join(cfg.Paths.OutputDir, "dragon", "dragon_STL.zip")
	if names := testsupport.ZipNames(t, archive); !reflect.DeepEqual(names, []string{"body.stl"}) {
		t.Fatalf("unexpected archive members %v", names)
	}
}
