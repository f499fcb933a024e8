package feed_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stlpipe/internal/feed"
	"stlpipe/internal/logging"
	"stlpipe/internal/testsupport"
)

type collector struct {
	events []feed.Event
}

func (c *collector) handle(_ context.Context, ev feed.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestFolderClaimsStableArchives(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	folder := feed.NewFolder(cfg, logging.NewNop())
	inboxPath := filepath.Join(cfg.Watch.InboxDir, "models_v2.zip")
	testsupport.WriteBytes(t, inboxPath, []byte("PK\x03\x04first"))
	testsupport.WriteBytes(t, filepath.Join(cfg.Watch.InboxDir, "readme.txt"), []byte("notes"))
	var got collector

	if err := folder.Poll(context.Background(), got.handle); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(got.events) != 0 {
		t.Fatalf("expected no event on first sighting, got %+v", got.events)
	}
	if err := folder.Poll(context.Background(), got.handle); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(got.events) != 1 {
		t.Fatalf("expected one event, got %d", len(got.events))
	}
	ev := got.events[0]
	if ev.Name != "models_v2.zip" || ev.Path != filepath.Join(cfg.Paths.DownloadDir, "models_v2.zip") || ev.Size != 9 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.ID != "" {
		t.Fatalf("folder events have no delivery id, got %q", ev.ID)
	}
	if _, err := os.Stat(inboxPath); !os.IsNotExist(err) {
		t.Fatalf("expected archive moved out of the inbox, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Watch.InboxDir, "readme.txt")); err != nil {
		t.Fatalf("expected non-archive left alone: %v", err)
	}

	if err := folder.Poll(context.Background(), got.handle); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(got.events) != 1 {
		t.Fatalf("claimed archive delivered again: %+v", got.events)
	}
}

func TestFolderWaitsForGrowingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	folder := feed.NewFolder(cfg, logging.NewNop())
	path := filepath.Join(cfg.Watch.InboxDir, "upload.rar")
	testsupport.WriteBytes(t, path, []byte("Rar!"))
	var got collector

	_ = folder.Poll(context.Background(), got.handle)
	testsupport.WriteBytes(t, path, []byte("Rar!\x1a\x07\x01\x00more"))
	_ = folder.Poll(context.Background(), got.handle)
	if len(got.events) != 0 {
		t.Fatalf("expected growing file held back, got %+v", got.events)
	}
	_ = folder.Poll(context.Background(), got.handle)
	if len(got.events) != 1 {
		t.Fatalf("expected file delivered once stable, got %d events", len(got.events))
	}
}

func TestFolderMovesVolumeSetsTogether(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	folder := feed.NewFolder(cfg, logging.NewNop())
	for _, name := range []string{"set.part1.rar", "set.part2.rar"} {
		testsupport.WriteBytes(t, filepath.Join(cfg.Watch.InboxDir, name), []byte("Rar!"+name))
	}
	var got collector

	_ = folder.Poll(context.Background(), got.handle)
	_ = folder.Poll(context.Background(), got.handle)

	if len(got.events) != 1 {
		t.Fatalf("expected one event for the set, got %d", len(got.events))
	}
	ev := got.events[0]
	if len(ev.Volumes) != 2 || filepath.Base(ev.Path) != "set.part1.rar" {
		t.Fatalf("unexpected event %+v", ev)
	}
	for _, volume := range ev.Volumes {
		if filepath.Dir(volume) != filepath.Dir(ev.Path) {
			t.Fatalf("volumes split across directories: %v", ev.Volumes)
		}
		if !strings.HasPrefix(volume, cfg.Paths.DownloadDir) {
			t.Fatalf("volume %s not moved into the download dir", volume)
		}
	}
}

func TestFolderRenamesOnCollision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	folder := feed.NewFolder(cfg, logging.NewNop())
	testsupport.WriteBytes(t, filepath.Join(cfg.Paths.DownloadDir, "pack.zip"), []byte("older"))
	testsupport.WriteBytes(t, filepath.Join(cfg.Watch.InboxDir, "pack.zip"), []byte("PK\x03\x04newer"))
	var got collector

	_ = folder.Poll(context.Background(), got.handle)
	_ = folder.Poll(context.Background(), got.handle)

	if len(got.events) != 1 {
		t.Fatalf("expected one event, got %d", len(got.events))
	}
	if !stampedName.MatchString(filepath.Base(got.events[0].Path)) {
		t.Fatalf("expected timestamped name, got %s", got.events[0].Path)
	}
}
