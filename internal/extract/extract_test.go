package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stlpipe/internal/extract"
	"stlpipe/internal/logging"
	"stlpipe/internal/testsupport"
)

func newExtractor(t *testing.T, unrar string) *extract.Extractor {
	t.Helper()
	return extract.NewWithBackends(logging.NewNop(), extract.ZipBackend{}, extract.NewRarBackend(unrar))
}

func TestZipTraversalEntryRejectedSiblingsExtracted(t *testing.T) {
	dir := t.TempDir()
	archive := testsupport.WriteZip(t, filepath.Join(dir, "pack.zip"),
		testsupport.Entry("../../evil.sh", "#!/bin/sh\n"),
		testsupport.Entry("models/dragon.stl", "solid dragon"),
		testsupport.Entry("/etc/passwd", "root"),
		testsupport.Entry("C:/Windows/evil.dll", "mz"),
		testsupport.Entry("preview.jpg", "jpeg"),
	)
	dest := filepath.Join(dir, "out")

	result, err := newExtractor(t, "").Extract(context.Background(), archive, dest)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", result.Entries)
	}
	if result.Entries[0].Path != "models/dragon.stl" || result.Entries[1].Path != "preview.jpg" {
		t.Fatalf("unexpected entries: %+v", result.Entries)
	}
	if len(result.Rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %+v", result.Rejected)
	}
	if result.Rejected[0].Path != "../../evil.sh" {
		t.Fatalf("expected traversal entry rejected first, got %+v", result.Rejected[0])
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.sh")); !os.IsNotExist(err) {
		t.Fatalf("traversal entry escaped destination: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil.sh")); !os.IsNotExist(err) {
		t.Fatalf("traversal entry escaped destination: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "models", "dragon.stl"))
	if err != nil || string(data) != "solid dragon" {
		t.Fatalf("expected sibling extracted, got %q err=%v", data, err)
	}
}

func TestZipSymlinkEntryRejected(t *testing.T) {
	dir := t.TempDir()
	archive := testsupport.WriteZip(t, filepath.Join(dir, "links.zip"),
		testsupport.ZipEntry{Name: "link.stl", Body: "/etc/passwd", Symlink: true},
		testsupport.Entry("real.stl", "solid"),
	)
	dest := filepath.Join(dir, "out")

	result, err := newExtractor(t, "").Extract(context.Background(), archive, dest)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Path != "link.stl" {
		t.Fatalf("expected symlink rejected, got %+v", result.Rejected)
	}
	if _, err := os.Lstat(filepath.Join(dest, "link.stl")); !os.IsNotExist(err) {
		t.Fatalf("symlink written to disk: %v", err)
	}
}

func TestZipLegacyNamesDecodedFromCP437(t *testing.T) {
	dir := t.TempDir()
	archive := testsupport.WriteZip(t, filepath.Join(dir, "legacy.zip"),
		testsupport.ZipEntry{Name: "M\x81ller.stl", Body: "solid", NonUTF8: true},
	)
	dest := filepath.Join(dir, "out")

	result, err := newExtractor(t, "").Extract(context.Background(), archive, dest)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Path != "M\u00fcller.stl" {
		t.Fatalf("expected decoded name, got %+v", result.Entries)
	}
	if _, err := os.Stat(filepath.Join(dest, "M\u00fcller.stl")); err != nil {
		t.Fatalf("decoded file missing: %v", err)
	}
}

func TestZipDuplicateNamesKeepSingleEntry(t *testing.T) {
	dir := t.TempDir()
	archive := testsupport.WriteZip(t, filepath.Join(dir, "dup.zip"),
		testsupport.Entry("part.stl", "first"),
		testsupport.Entry("part.stl", "second!"),
	)
	result, err := newExtractor(t, "").Extract(context.Background(), archive, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Size != int64(len("second!")) || result.Entries[0].Index != 1 {
		t.Fatalf("expected last duplicate to win, got %+v", result.Entries)
	}
}

func TestExtractHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	archive := testsupport.WriteZip(t, filepath.Join(dir, "pack.zip"), testsupport.Entry("a.stl", "a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExtractor(t, "").Extract(ctx, archive, filepath.Join(dir, "out"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	zipBytes := []byte("PK\x03\x04rest-of-zip")
	rarBytes := []byte("Rar!\x1a\x07\x01\x00rest")

	tests := []struct {
		name    string
		file    string
		data    []byte
		want    extract.Format
		wantErr error
	}{
		{name: "zip", file: "a.zip", data: zipBytes, want: extract.FormatZip},
		{name: "rar5", file: "a.rar", data: rarBytes, want: extract.FormatRar},
		{name: "rar4", file: "b.RAR", data: []byte("Rar!\x1a\x07\x00xx"), want: extract.FormatRar},
		{name: "rar named zip", file: "c.zip", data: rarBytes, wantErr: extract.ErrFormatMismatch},
		{name: "zip named rar", file: "c.rar", data: zipBytes, wantErr: extract.ErrFormatMismatch},
		{name: "truncated zip", file: "d.zip", data: []byte("PK"), wantErr: extract.ErrCorruptArchive},
		{name: "split volume", file: "e.zip.001", data: zipBytes, want: extract.FormatZip},
		{name: "unknown", file: "f.7z", data: []byte("7z\xbc\xaf\x27\x1c"), wantErr: extract.ErrFormatMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			testsupport.WriteBytes(t, path, tt.data)
			got, err := extract.Detect(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("Detect = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestExtractFormatMismatchCarriesReason(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.zip")
	testsupport.WriteBytes(t, path, []byte("Rar!\x1a\x07\x00data"))

	_, err := newExtractor(t, "").Extract(context.Background(), path, filepath.Join(dir, "out"))
	var extractErr *extract.Error
	if !errors.As(err, &extractErr) || extractErr.Reason != extract.ReasonFormatMismatch {
		t.Fatalf("expected format mismatch error, got %v", err)
	}
	if extractErr.Archive != path {
		t.Fatalf("expected archive path on error, got %q", extractErr.Archive)
	}
}

const fakeUnrar = `cmd="$1"
case "$cmd" in
lb)
	printf 'models/dragon.stl\n../../evil.sh\nimg/preview.jpg\n'
	;;
x)
	exclude=""
	for arg in "$@"; do
		case "$arg" in
		-x@*) exclude="${arg#-x@}" ;;
		esac
		dest="$arg"
	done
	if [ -n "$exclude" ]; then cp "$exclude" "$dest/../exclusions.txt"; fi
	mkdir -p "$dest/models" "$dest/img"
	printf 'solid dragon' > "$dest/models/dragon.stl"
	printf 'jpeg' > "$dest/img/preview.jpg"
	;;
esac
`

func writeRar(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pack.rar")
	testsupport.WriteBytes(t, path, []byte("Rar!\x1a\x07\x01\x00payload"))
	return path
}

func TestRarExcludesUnsafeEntries(t *testing.T) {
	dir := t.TempDir()
	unrar := testsupport.WriteScript(t, filepath.Join(dir, "bin"), "unrar", fakeUnrar)
	archive := writeRar(t, dir)
	dest := filepath.Join(dir, "work", "out")

	result, err := newExtractor(t, unrar).Extract(context.Background(), archive, dest)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Format != extract.FormatRar {
		t.Fatalf("expected rar format, got %q", result.Format)
	}
	if len(result.Entries) != 2 || result.Entries[0].Path != "models/dragon.stl" || result.Entries[1].Index != 2 {
		t.Fatalf("unexpected entries: %+v", result.Entries)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Path != "../../evil.sh" {
		t.Fatalf("expected traversal rejection, got %+v", result.Rejected)
	}
	exclusions, err := os.ReadFile(filepath.Join(dir, "work", "exclusions.txt"))
	if err != nil {
		t.Fatalf("expected exclusion list passed to unrar: %v", err)
	}
	if strings.TrimSpace(string(exclusions)) != "../../evil.sh" {
		t.Fatalf("unexpected exclusion list %q", exclusions)
	}
}

func TestRarMissingBinaryIsCapabilityUnavailable(t *testing.T) {
	dir := t.TempDir()
	archive := writeRar(t, dir)

	_, err := newExtractor(t, filepath.Join(dir, "no-such-unrar")).Extract(context.Background(), archive, filepath.Join(dir, "out"))
	if !errors.Is(err, extract.ErrCapabilityUnavailable) {
		t.Fatalf("expected capability unavailable, got %v", err)
	}
}

func TestRarNonZeroExitIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	unrar := testsupport.WriteScript(t, filepath.Join(dir, "bin"), "unrar", "echo 'CRC failed in pack.rar' >&2\nexit 3\n")
	archive := writeRar(t, dir)

	_, err := newExtractor(t, unrar).Extract(context.Background(), archive, filepath.Join(dir, "out"))
	if !errors.Is(err, extract.ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive, got %v", err)
	}
	if !strings.Contains(err.Error(), "CRC failed") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
}

func TestScanArchivesSkipsLaterVolumes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"b.zip", "a.rar", "set.part1.rar", "set.part2.rar", "set.part03.rar",
		"split.zip.001", "split.zip.002", "notes.txt", ".hidden.zip",
	} {
		testsupport.WriteBytes(t, filepath.Join(dir, name), []byte("x"))
	}
	if err := os.Mkdir(filepath.Join(dir, "folder.zip"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := extract.ScanArchives(dir)
	if err != nil {
		t.Fatalf("ScanArchives returned error: %v", err)
	}
	var names []string
	for _, path := range got {
		names = append(names, filepath.Base(path))
	}
	want := "a.rar,b.zip,set.part1.rar,split.zip.001"
	if strings.Join(names, ",") != want {
		t.Fatalf("ScanArchives = %v, want %s", names, want)
	}
}

func TestVolumesCollectsSet(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"set.part1.rar", "set.part2.rar", "set.part03.rar", "other.part2.rar", "split.zip.001", "split.zip.002", "a.zip"} {
		testsupport.WriteBytes(t, filepath.Join(dir, name), []byte("x"))
	}
	tests := []struct {
		first string
		want  string
	}{
		{first: "set.part1.rar", want: "set.part03.rar,set.part1.rar,set.part2.rar"},
		{first: "split.zip.001", want: "split.zip.001,split.zip.002"},
		{first: "a.zip", want: "a.zip"},
	}
	for _, tc := range tests {
		got, err := extract.Volumes(filepath.Join(dir, tc.first))
		if err != nil {
			t.Fatalf("Volumes(%s): %v", tc.first, err)
		}
		var names []string
		for _, path := range got {
			names = append(names, filepath.Base(path))
		}
		if strings.Join(names, ",") != tc.want {
			t.Fatalf("Volumes(%s) = %v, want %s", tc.first, names, tc.want)
		}
	}
}

func splitFile(t *testing.T, src string, names ...string) {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	chunk := (len(data) + len(names) - 1) / len(names)
	for i, name := range names {
		end := min((i+1)*chunk, len(data))
		testsupport.WriteBytes(t, filepath.Join(filepath.Dir(src), name), data[i*chunk:end])
	}
	if err := os.Remove(src); err != nil {
		t.Fatal(err)
	}
}

func TestSplitZipSetJoinedBeforeExtraction(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteZip(t, filepath.Join(dir, "whole.zip"),
		testsupport.Entry("models/dragon.stl", strings.Repeat("solid dragon\n", 64)),
		testsupport.Entry("preview.jpg", "jpeg"),
	)
	splitFile(t, filepath.Join(dir, "whole.zip"), "set.zip.001", "set.zip.002")

	archives, err := extract.ScanArchives(dir)
	if err != nil {
		t.Fatalf("ScanArchives returned error: %v", err)
	}
	if len(archives) != 1 || filepath.Base(archives[0]) != "set.zip.001" {
		t.Fatalf("ScanArchives = %v, want [set.zip.001]", archives)
	}

	workspace := filepath.Join(dir, "work")
	dest := filepath.Join(workspace, "extract")
	result, err := newExtractor(t, "").Extract(context.Background(), archives[0], dest)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Format != extract.FormatZip || len(result.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	data, err := os.ReadFile(filepath.Join(dest, "models", "dragon.stl"))
	if err != nil || string(data) != strings.Repeat("solid dragon\n", 64) {
		t.Fatalf("joined entry not extracted intact: err=%v", err)
	}
	entries, err := os.ReadDir(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "extract" {
		t.Fatalf("joined file left behind: %v", entries)
	}
}

func TestSplitSetWithGapIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteZip(t, filepath.Join(dir, "whole.zip"),
		testsupport.Entry("a.stl", strings.Repeat("a", 512)),
	)
	splitFile(t, filepath.Join(dir, "whole.zip"), "set.zip.001", "set.zip.002", "set.zip.003")
	if err := os.Remove(filepath.Join(dir, "set.zip.002")); err != nil {
		t.Fatal(err)
	}

	_, err := newExtractor(t, "").Extract(context.Background(), filepath.Join(dir, "set.zip.001"), filepath.Join(dir, "work", "extract"))
	if !errors.Is(err, extract.ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive, got %v", err)
	}
	if !strings.Contains(err.Error(), "volume 2 missing") {
		t.Fatalf("expected missing volume in error, got %v", err)
	}
}

func TestScanArchivesIgnoresForeignSplitSets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pack.7z.001", "pack.7z.002", "plain.001", "plain.002"} {
		testsupport.WriteBytes(t, filepath.Join(dir, name), []byte("x"))
	}
	got, err := extract.ScanArchives(dir)
	if err != nil {
		t.Fatalf("ScanArchives returned error: %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "plain.001" {
		t.Fatalf("ScanArchives = %v, want [plain.001]", got)
	}
}

func TestVolumeIndex(t *testing.T) {
	tests := []struct {
		name  string
		set   string
		index int
		ok    bool
	}{
		{name: "pack.part02.rar", set: "pack.rar", index: 2, ok: true},
		{name: "pack.PART1.RAR", set: "pack.rar", index: 1, ok: true},
		{name: "pack.zip.003", set: "pack.zip", index: 3, ok: true},
		{name: "pack.zip", ok: false},
	}
	for _, tc := range tests {
		set, index, ok := extract.VolumeIndex(tc.name)
		if set != tc.set || index != tc.index || ok != tc.ok {
			t.Fatalf("VolumeIndex(%s) = %q %d %v, want %q %d %v", tc.name, set, index, ok, tc.set, tc.index, tc.ok)
		}
	}
}
