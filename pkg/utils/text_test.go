package utils

import "testing"

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := CleanJSON(c.in); got != c.want {
			t.Errorf("CleanJSON(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStripThink(t *testing.T) {
	if got := StripThink("<think>hmm</think>\nanswer"); got != "answer" {
		t.Fatalf("got %q", got)
	}
	if got := StripThink("no trace here"); got != "no trace here" {
		t.Fatalf("got %q", got)
	}
	if got := StripThink("<think>a</think>mid<think>b</think>final"); got != "final" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename("a/b\\c:d"); got != "a_b_c_d" {
		t.Fatalf("got %q", got)
	}
}

func TestDiffWords(t *testing.T) {
	deltas := DiffWords("the quick fox", "the slow fox")
	var removed, added int
	for _, d := range deltas {
		switch d.Op {
		case -1:
			removed++
			if d.Text != "quick" {
				t.Fatalf("unexpected removal %q", d.Text)
			}
		case 1:
			added++
			if d.Text != "slow" {
				t.Fatalf("unexpected addition %q", d.Text)
			}
		}
	}
	if removed != 1 || added != 1 {
		t.Fatalf("removed=%d added=%d", removed, added)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	path := t.TempDir() + "/nested/dir/data.json"

	if err := Save(path, payload{Name: "x", Count: 3}); err != nil {
		t.Fatal(err)
	}
	got, err := Load[payload](path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "x" || got.Count != 3 {
		t.Fatalf("got %+v", got)
	}
}
