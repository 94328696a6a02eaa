package alerting

import (
	"strings"
	"testing"
	"time"
)

func TestRenderMessageSubstitutesPlaceholders(t *testing.T) {
	ctx := TemplateContext{
		TaskName:   "gate-watch",
		ClassName:  "person",
		Confidence: 0.8765,
		VideoName:  "north-gate",
		Time:       time.Date(2024, 6, 12, 14, 30, 5, 0, time.UTC),
	}
	got := RenderMessage("{task_name}: {class_name} ({confidence}%) on {video_name} at {time}", ctx)
	want := "gate-watch: person (87.65%) on north-gate at 2024-06-12 14:30:05"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderMessageEmptyTemplateUsesDefault(t *testing.T) {
	ctx := TemplateContext{
		TaskName:   "gate-watch",
		ClassName:  "car",
		Confidence: 0.5,
		VideoName:  "lot",
		Time:       time.Unix(0, 0).UTC(),
	}
	got := RenderMessage("  ", ctx)
	if !strings.Contains(got, "gate-watch") || !strings.Contains(got, "car") {
		t.Errorf("default template missing fields: %q", got)
	}
	if strings.Contains(got, "{") {
		t.Errorf("unexpanded placeholder in %q", got)
	}
}

func TestRenderMessageLeavesUnknownPlaceholders(t *testing.T) {
	got := RenderMessage("hello {nobody}", TemplateContext{Time: time.Unix(0, 0)})
	if got != "hello {nobody}" {
		t.Errorf("got %q", got)
	}
}

func TestTitle(t *testing.T) {
	got := Title("person", "gate-watch")
	if got != "person detection alert - gate-watch" {
		t.Errorf("got %q", got)
	}
}
