package main

import (
	"strings"
	"testing"
	"time"
)

func TestParseTrack(t *testing.T) {
	in := `# santiago -> mendoza
-33.45,-70.66,2024-06-01T12:00:00Z

-32.89, -68.84
`
	fixes, err := parseTrack(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(fixes) != 2 {
		t.Fatalf("len = %d", len(fixes))
	}
	if fixes[0].Latitude != -33.45 || !fixes[0].Timestamp.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("first = %+v", fixes[0])
	}
	if fixes[1].Longitude != -68.84 || !fixes[1].Timestamp.IsZero() {
		t.Fatalf("second = %+v", fixes[1])
	}
}

func TestParseTrackErrors(t *testing.T) {
	cases := []string{
		"1",
		"a,2",
		"1,b",
		"1,2,yesterday",
		"1,2,3,4",
	}
	for _, c := range cases {
		if _, err := parseTrack(strings.NewReader(c)); err == nil {
			t.Errorf("parseTrack(%q) should fail", c)
		}
	}
}
