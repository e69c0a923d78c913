package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() < 50 {
		t.Fatalf("Len = %d, want >= 50", c.Len())
	}
	cl, ok := c.Lookup("cl")
	if !ok {
		t.Fatal("Lookup(cl) missing")
	}
	if cl.Name != "Chile" || cl.Capital != "Santiago" {
		t.Fatalf("Lookup(cl) = %q/%q", cl.Name, cl.Capital)
	}
	if cl.BBox.Lng != [2]float64{-75.6, -66.4} {
		t.Fatalf("Chile lng range = %v", cl.BBox.Lng)
	}
	if recs := c.Records(); recs[0].Code != "FR" {
		t.Fatalf("first record = %s, want FR (catalog order)", recs[0].Code)
	}
}

func TestRecordsIsCopy(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	recs := c.Records()
	recs[0].Name = "mutated"
	if r, _ := c.Lookup(recs[0].Code); r.Name == "mutated" {
		t.Fatal("Records exposed internal slice")
	}
}

func TestNewValidation(t *testing.T) {
	good := CountryRecord{Code: "CL", Name: "Chile", BBox: BBox{Lat: [2]float64{-56, -17.5}, Lng: [2]float64{-75.6, -66.4}}}
	tests := []struct {
		name string
		recs []CountryRecord
		want error
	}{
		{"lat inverted", []CountryRecord{{Code: "CL", Name: "Chile", BBox: BBox{Lat: [2]float64{-17.5, -56}, Lng: good.BBox.Lng}}}, ErrInvalidBBox},
		{"lng inverted", []CountryRecord{{Code: "CL", Name: "Chile", BBox: BBox{Lat: good.BBox.Lat, Lng: [2]float64{-66.4, -75.6}}}}, ErrInvalidBBox},
		{"lat out of range", []CountryRecord{{Code: "CL", Name: "Chile", BBox: BBox{Lat: [2]float64{-95, 0}, Lng: good.BBox.Lng}}}, ErrInvalidBBox},
		{"unknown region", []CountryRecord{{Code: "ZZ", Name: "Nowhere", BBox: good.BBox}}, ErrInvalidCode},
		{"not alpha", []CountryRecord{{Code: "C1", Name: "Bad", BBox: good.BBox}}, ErrInvalidCode},
		{"duplicate", []CountryRecord{good, good}, ErrDuplicateCode},
		{"missing name", []CountryRecord{{Code: "CL", BBox: good.BBox}}, ErrMissingName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.recs, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("New err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewDerivesFlagAndNormalisesCode(t *testing.T) {
	c, err := New([]CountryRecord{{Code: "cl", Name: "Chile", BBox: BBox{Lat: [2]float64{-56, -17.5}, Lng: [2]float64{-75.6, -66.4}}}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, ok := c.Lookup("CL")
	if !ok {
		t.Fatal("Lookup(CL) missing")
	}
	if r.Flag != "🇨🇱" {
		t.Fatalf("Flag = %q", r.Flag)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode(strings.NewReader("{"), nil); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFlagEmoji(t *testing.T) {
	if got := FlagEmoji("jp"); got != "🇯🇵" {
		t.Fatalf("FlagEmoji(jp) = %q", got)
	}
	if got := FlagEmoji("J1"); got != "" {
		t.Fatalf("FlagEmoji(J1) = %q, want empty", got)
	}
	if got := FlagEmoji("USA"); got != "" {
		t.Fatalf("FlagEmoji(USA) = %q, want empty", got)
	}
}

func TestCurrency(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cu, ok := c.Currency("br")
	if !ok || cu.Code != "BRL" || cu.Symbol != "R$" {
		t.Fatalf("Currency(br) = %+v, %v", cu, ok)
	}
	// 表中没有尼日利亚，应由区域数据推导
	cu, ok = c.Currency("NG")
	if !ok || cu.Code != "NGN" || cu.Symbol != "" {
		t.Fatalf("Currency(NG) = %+v, %v", cu, ok)
	}
	if _, ok := c.Currency("1X"); ok {
		t.Fatal("Currency(1X) should not resolve")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("ng"); got != "Nigeria" {
		t.Fatalf("DisplayName(ng) = %q", got)
	}
	if got := DisplayName("??"); got != "" {
		t.Fatalf("DisplayName(??) = %q", got)
	}
}
