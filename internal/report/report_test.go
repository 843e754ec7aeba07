package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/artyom/imgmatch/internal/orb"
	"github.com/artyom/imgmatch/internal/scan"
)

func sampleResults() []scan.Result {
	return []scan.Result{
		{
			Path:        "/photos/a, copy.jpg",
			Filename:    "a, copy.jpg",
			Fingerprint: 0xd1d1e4e4b0b0c8c8,
			Hamming:     5,
			Match:       orb.MatchStats{Good: 80, Total: 100, Ratio: 0.8},
			Score:       0.126875,
		},
		{
			Path:          "/photos/sub/b.png",
			Filename:      "b.png",
			Fingerprint:   0x1,
			Hamming:       10,
			Match:         orb.MatchStats{Good: 5, Total: 10, Ratio: 0.5},
			Score:         0.29375,
			BelowMinRatio: true,
		},
	}
}

func TestRecords(t *testing.T) {
	recs := Records(sampleResults())
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].Rank != 1 || recs[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", recs[0].Rank, recs[1].Rank)
	}
	got := recs[0].Strings()
	want := []string{"1", "a, copy.jpg", "/photos/a, copy.jpg", "d1d1e4e4b0b0c8c8", "5", "80", "100", "0.8000", "0.126875"}
	if len(got) != len(Header) {
		t.Fatalf("record has %d cells, header %d", len(got), len(Header))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %s = %q, want %q", Header[i], got[i], want[i])
		}
	}
	if recs[1].Fingerprint != "0000000000000001" {
		t.Errorf("fingerprint not zero padded: %q", recs[1].Fingerprint)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, Records(sampleResults())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), strings.Join(Header, ",")+"\n") {
		t.Fatalf("unexpected header line in %q", buf.String())
	}
	paths, err := ReadPaths(&buf)
	if err != nil {
		t.Fatalf("ReadPaths: %v", err)
	}
	want := []string{"/photos/a, copy.jpg", "/photos/sub/b.png"}
	if strings.Join(paths, "|") != strings.Join(want, "|") {
		t.Fatalf("paths = %q, want %q", paths, want)
	}
}

func TestReadPaths(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{name: "mixed case header", input: "Rank,PATH\n1,/x.jpg\n2,\n3,/y.png\n", want: []string{"/x.jpg", "/y.png"}},
		{name: "short rows", input: "path,score\n/a.jpg,0.1\n\n", want: []string{"/a.jpg"}},
		{name: "empty input", input: "", wantErr: ErrNoPathColumn},
		{name: "no path column", input: "rank,score\n1,0.2\n", wantErr: ErrNoPathColumn},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ReadPaths(strings.NewReader(tc.input))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadPaths: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatTable, Records(sampleResults())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"filename", "a, copy.jpg", "0.80", "0.127", "0.50*", "0.294"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMarkdownAndTSV(t *testing.T) {
	for _, format := range []string{FormatMarkdown, FormatTSV} {
		var buf bytes.Buffer
		if err := Write(&buf, format, Records(sampleResults())); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !strings.Contains(buf.String(), "/photos/sub/b.png") || !strings.Contains(buf.String(), "0.293750") {
			t.Errorf("%s output incomplete:\n%s", format, buf.String())
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "JSON", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("empty json = %q", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, FormatJSON, Records(sampleResults())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var decoded []Record
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 || !decoded[1].BelowMinRatio || decoded[0].Path != "/photos/a, copy.jpg" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, "xml", nil); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
