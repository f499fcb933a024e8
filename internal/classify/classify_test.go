package classify_test

import (
	"strings"
	"testing"

	"stlpipe/internal/classify"
)

func defaultClassifier() *classify.Classifier {
	return classify.New(
		[]string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"},
		[]string{"stl", ".OBJ", ".3mf", ".step", ".stp", ".gcode", ".zip", ".rar", ".7z"},
	)
}

func TestClassify(t *testing.T) {
	c := defaultClassifier()
	tests := []struct {
		path string
		want classify.Kind
	}{
		{"renders/front.JPG", classify.KindImage},
		{"a.webp", classify.KindImage},
		{"parts/body.stl", classify.KindModel},
		{"parts/BODY.STL", classify.KindModel},
		{"parts/arm.obj", classify.KindModel},
		{"supports/presupported.zip", classify.KindModel},
		{"notes.txt", classify.KindIgnored},
		{"README", classify.KindIgnored},
		{"folder.with.dots/file", classify.KindIgnored},
		{`win\path\part.3mf`, classify.KindModel},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.path); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := defaultClassifier()
	for i := 0; i < 3; i++ {
		if c.Classify("x/y/z.stl") != classify.KindModel {
			t.Fatal("expected stable classification")
		}
	}
}

func TestFilterAllow(t *testing.T) {
	f := classify.NewFilter(
		[]string{"+NSFW", ".url", ".txt", "Boost", "__MACOSX"},
		map[string]int64{"Base.stl": 5 * 1024 * 1024},
	)
	tests := []struct {
		name    string
		path    string
		size    int64
		allowed bool
		reason  string
	}{
		{name: "plain model", path: "parts/body.stl", size: 10, allowed: true},
		{name: "nsfw folder", path: "Hero +nsfw/body.stl", size: 10, reason: "blacklist"},
		{name: "boost case-insensitive", path: "patreon_BOOST/render.png", size: 10, reason: "blacklist"},
		{name: "mac resource fork", path: "__MACOSX/._body.stl", size: 10, reason: "blacklist"},
		{name: "small base", path: "bases/Base.stl", size: 1024, reason: "smaller than"},
		{name: "large base", path: "bases/Base.stl", size: 6 * 1024 * 1024, allowed: true},
		{name: "other small file", path: "bases/base_round.stl", size: 1, allowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := f.Allow(tt.path, tt.size)
			if allowed != tt.allowed {
				t.Fatalf("Allow(%q) = %v (%s), want %v", tt.path, allowed, reason, tt.allowed)
			}
			if !allowed && !strings.Contains(reason, tt.reason) {
				t.Fatalf("unexpected reason %q, want %q", reason, tt.reason)
			}
		})
	}
}

func TestNilFilterAllowsEverything(t *testing.T) {
	var f *classify.Filter
	if ok, _ := f.Allow("anything.txt", 0); !ok {
		t.Fatal("expected nil filter to allow")
	}
}
