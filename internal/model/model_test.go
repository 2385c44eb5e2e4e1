package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestVersion_Ordering(t *testing.T) {
	ordered := []string{"22.3", "22.2", "21.4", "17.0"}
	for i := 0; i < len(ordered)-1; i++ {
		hi := MustParseVersion(ordered[i])
		lo := MustParseVersion(ordered[i+1])
		if hi.Compare(lo) != 1 {
			t.Errorf("%s.Compare(%s) = %d, want 1", hi, lo, hi.Compare(lo))
		}
		if !lo.Less(hi) {
			t.Errorf("%s should sort before %s", lo, hi)
		}
	}
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"21.1", "21.1.0", 0},
		{"21.1.1", "21.1", 1},
		{"20.1", "20.1.1", -1},
		{"9.1", "10.0", -1},
		{"18.0", "18", 0},
		{"22.10", "22.9", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got := MustParseVersion(tt.a).Compare(MustParseVersion(tt.b))
			if got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, in := range []string{"", "22.", ".3", "22.x", "-1.0", "22.3 (Latest)", "v22"} {
		if _, err := ParseVersion(in); err == nil {
			t.Errorf("ParseVersion(%q) succeeded, want error", in)
		}
	}
}

func TestVersion_JSON(t *testing.T) {
	v := MustParseVersion("21.1.1")
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"21.1.1"` {
		t.Errorf("Marshal = %s, want \"21.1.1\"", data)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1.5 MB", 1572864, false},
		{"2 GB", 2147483648, false},
		{"10 KB", 10240, false},
		{"512 b", 512, false},
		{"1,024 kb", 1048576, false},
		{"1.1 KB", 1126, false},
		{"3 TB", 0, true},
		{"MB", 0, true},
		{"-1 MB", 0, true},
		{"1.5MB", 0, true},
		{"NaN MB", 0, true},
		{"Inf KB", 0, true},
		{"-Inf KB", 0, true},
		{"1e30 GB", 0, true},
		{"8589934592 GB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseByteSize(%q) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseByteSize(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateChecksum(t *testing.T) {
	valid := strings.Repeat("a1", 20)
	if !ValidateChecksum(valid) {
		t.Errorf("ValidateChecksum(%q) = false, want true", valid)
	}

	for n := 0; n <= 64; n++ {
		if n == ChecksumLength {
			continue
		}
		s := strings.Repeat("f", n)
		if ValidateChecksum(s) {
			t.Errorf("ValidateChecksum of length %d = true, want false", n)
		}
	}

	if ValidateChecksum(strings.Repeat("g", 40)) {
		t.Error("non-hex checksum accepted")
	}
}

func TestNormalizeChecksum(t *testing.T) {
	got, err := NormalizeChecksum("  " + strings.Repeat("AB", 20) + " ")
	if err != nil {
		t.Fatalf("NormalizeChecksum: %v", err)
	}
	if got != strings.Repeat("ab", 20) {
		t.Errorf("NormalizeChecksum = %q", got)
	}

	_, err = NormalizeChecksum("abc")
	if !errors.Is(err, ErrInvalidChecksum) {
		t.Errorf("err = %v, want ErrInvalidChecksum", err)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		order   DateOrder
		want    time.Time
		wantErr bool
	}{
		{"10/31/2022", DateOrderMDY, time.Date(2022, 10, 31, 0, 0, 0, 0, time.UTC), false},
		{"31/10/2022", DateOrderDMY, time.Date(2022, 10, 31, 0, 0, 0, 0, time.UTC), false},
		{"03/04/2021", DateOrderMDY, time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), false},
		{"03/04/2021", DateOrderDMY, time.Date(2021, 4, 3, 0, 0, 0, 0, time.UTC), false},
		{"31/10/2022", DateOrderMDY, time.Time{}, true},
		{"02/30/2022", DateOrderMDY, time.Time{}, true},
		{"2022-10-31", DateOrderMDY, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.order)+"_"+tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input, tt.order)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q, %s) = %v, want error", tt.input, tt.order, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q, %s) = %v, want %v", tt.input, tt.order, got, tt.want)
			}
		})
	}
}

func TestArtifactRecord_SetCDNURL(t *testing.T) {
	rec := &ArtifactRecord{Filename: "QuartusProSetup-22.3.0.104-linux.run"}

	if err := rec.SetCDNURL("https://downloads.example.com/akdlm/a.run"); err != nil {
		t.Fatalf("first SetCDNURL: %v", err)
	}
	if err := rec.SetCDNURL("https://downloads.example.com/akdlm/a.run"); err != nil {
		t.Errorf("same value SetCDNURL: %v", err)
	}
	err := rec.SetCDNURL("https://downloads.example.com/akdlm/b.run")
	if !errors.Is(err, ErrCDNURLConflict) {
		t.Errorf("conflicting SetCDNURL err = %v, want ErrCDNURLConflict", err)
	}
	if rec.CDNURL() != "https://downloads.example.com/akdlm/a.run" {
		t.Errorf("CDNURL overwritten: %s", rec.CDNURL())
	}

	rec.ResetCDNURL()
	if err := rec.SetCDNURL("https://downloads.example.com/akdlm/b.run"); err != nil {
		t.Errorf("SetCDNURL after reset: %v", err)
	}
}

func TestArtifactRecord_JSONRoundTrip(t *testing.T) {
	rec := &ArtifactRecord{
		Filename:  "Quartus-lite-22.1std.0.915-windows.tar",
		DirectURL: "https://www.example.com/content/dam/getContent/a.tar",
		SHA1:      strings.Repeat("0", 40),
		Version:   MustParseVersion("22.1"),
		ID:        757262,
		Updated:   time.Date(2022, 11, 7, 0, 0, 0, 0, time.UTC),
		Size:      6 * 1024 * 1024 * 1024,
		Platform:  PlatformWindows,
		Edition:   EditionLite,
	}
	if err := rec.SetCDNURL("https://downloads.example.com/akdlm/a.tar"); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"updated":"2022-11-07"`) {
		t.Errorf("updated date not encoded as a date: %s", data)
	}

	var back ArtifactRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.CDNURL() != rec.CDNURL() || !back.Version.Equal(rec.Version) || !back.Updated.Equal(rec.Updated) {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestNewDistributionGroup(t *testing.T) {
	pages := []VersionPage{
		{Version: MustParseVersion("22.1"), URL: "https://example.com/a.html"},
		{Version: MustParseVersion("21.1.1"), URL: "https://example.com/b.html"},
		{Version: MustParseVersion("21.1"), URL: "https://example.com/c.html"},
	}

	g, err := NewDistributionGroup(EditionStandard, PlatformLinux, pages)
	if err != nil {
		t.Fatalf("NewDistributionGroup: %v", err)
	}
	if url, ok := g.Lookup(MustParseVersion("21.1.1")); !ok || url != "https://example.com/b.html" {
		t.Errorf("Lookup(21.1.1) = %q, %v", url, ok)
	}
	if got := g.Versions(); len(got) != 3 || got[0].String() != "22.1" {
		t.Errorf("Versions() = %v, want selector order", got)
	}

	dup := append(pages, VersionPage{Version: MustParseVersion("21.1.0"), URL: "https://example.com/d.html"})
	if _, err := NewDistributionGroup(EditionStandard, PlatformLinux, dup); err == nil {
		t.Error("duplicate version accepted")
	}

	if _, err := NewDistributionGroup(EditionStandard, PlatformUnknown, pages); err == nil {
		t.Error("unknown platform accepted")
	}
}

func TestDistributionGroup_OwnsPages(t *testing.T) {
	pages := []VersionPage{
		{Version: MustParseVersion("23.1"), URL: "https://example.com/a.html"},
		{Version: MustParseVersion("22.4"), URL: "https://example.com/b.html"},
	}
	g, err := NewDistributionGroup(EditionPro, PlatformWindows, pages)
	if err != nil {
		t.Fatalf("NewDistributionGroup: %v", err)
	}

	pages[0].URL = "https://example.com/changed.html"
	if url, _ := g.Lookup(MustParseVersion("23.1")); url != "https://example.com/a.html" {
		t.Errorf("Lookup(23.1) = %q after the input slice changed", url)
	}

	versions := g.Versions()
	versions[0] = MustParseVersion("1.0")
	if got := g.Versions()[0].String(); got != "23.1" {
		t.Errorf("Versions()[0] = %s after the returned slice changed", got)
	}
}
