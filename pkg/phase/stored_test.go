package phase

import "testing"

func TestDocID(t *testing.T) {
	if got := DocID("churn-model"); got != "analytics-churn-model-progress" {
		t.Errorf("DocID = %q", got)
	}
}

func TestJobIDFromDocID(t *testing.T) {
	cases := []struct {
		docID string
		want  string
		ok    bool
	}{
		{"analytics-churn-model-progress", "churn-model", true},
		{"analytics-a-progress", "a", true},
		{"analytics--progress", "", false},
		{"analytics-churn-model", "", false},
		{"churn-model-progress", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := JobIDFromDocID(tc.docID)
		if got != tc.want || ok != tc.ok {
			t.Errorf("JobIDFromDocID(%q) = %q, %v; want %q, %v", tc.docID, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseStoredProgress(t *testing.T) {
	body := []byte(`{"progress":[{"name":"reindexing","percent":100},{"name":"loading_data","percent":20}]}`)
	doc, err := ParseStoredProgress(body)
	if err != nil {
		t.Fatalf("ParseStoredProgress: %v", err)
	}
	if len(doc.Progress) != 2 {
		t.Fatalf("got %d phases, want 2", len(doc.Progress))
	}
	if doc.Progress[1].Name != LoadingData || doc.Progress[1].Percent != 20 {
		t.Errorf("unexpected second phase: %v", doc.Progress[1])
	}
}

func TestParseStoredProgressRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"progress":`,
		"unknown phase": `{"progress":[{"name":"training","percent":10}]}`,
		"percent high":  `{"progress":[{"name":"analyzing","percent":150}]}`,
		"percent low":   `{"progress":[{"name":"analyzing","percent":-5}]}`,
	}
	for name, body := range cases {
		if _, err := ParseStoredProgress([]byte(body)); err == nil {
			t.Errorf("%s: expected parse error", name)
		}
	}
}
