package posture

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewReport_ClampsScore(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := NewReport("example.com", -40, nil, nil, "", ts, 0).Score(); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := NewReport("example.com", 130, nil, nil, "", ts, 0).Score(); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestReport_Immutable(t *testing.T) {
	issues := []string{"first issue"}
	passes := []string{"first pass"}
	r := NewReport("example.com", 80, issues, passes, "wix", time.Now(), time.Second)

	issues[0] = "mutated"
	passes[0] = "mutated"
	if r.Issues()[0] != "first issue" || r.Passes()[0] != "first pass" {
		t.Error("report picked up caller mutation")
	}

	got := r.Issues()
	got[0] = "mutated"
	if r.Issues()[0] != "first issue" {
		t.Error("accessor exposed internal slice")
	}
}

func TestReport_MarshalJSON(t *testing.T) {
	ts := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	r := NewReport("example.com", 65, []string{"No SPF record"}, nil, "", ts, 1500*time.Millisecond)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["cms"] != nil {
		t.Errorf("expected cms null, got %v", decoded["cms"])
	}
	if decoded["score"].(float64) != 65 {
		t.Errorf("unexpected score %v", decoded["score"])
	}
	if decoded["duration_ms"].(float64) != 1500 {
		t.Errorf("unexpected duration %v", decoded["duration_ms"])
	}
	if passes, ok := decoded["passes"].([]any); !ok || len(passes) != 0 {
		t.Errorf("expected empty passes array, got %v", decoded["passes"])
	}

	withCMS, _ := json.Marshal(NewReport("example.com", 65, nil, nil, "drupal", ts, 0))
	if !strings.Contains(string(withCMS), `"cms":"drupal"`) {
		t.Errorf("expected cms in %s", withCMS)
	}
}

func TestAdvisory(t *testing.T) {
	if !strings.Contains(Advisory("WordPress"), "plugins") {
		t.Error("expected WordPress advisory to mention plugins")
	}
	unknown := Advisory(UnknownPlatform)
	if Advisory("") != unknown || Advisory("ghost") != unknown {
		t.Error("expected unknown advisory fallback")
	}
	for _, p := range []string{"wordpress", "shopify", "squarespace", "wix", "joomla", "drupal"} {
		if Advisory(p) == unknown {
			t.Errorf("platform %q has no dedicated advisory", p)
		}
	}
}
