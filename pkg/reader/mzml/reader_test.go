package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

func encode64(values []float64, compress bool) string {
	var buf bytes.Buffer
	for _, v := range values {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	}
	data := buf.Bytes()
	if compress {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		w.Write(data)
		w.Close()
		data = z.Bytes()
	}
	return base64.StdEncoding.EncodeToString(data)
}

func encode32(values []float64) string {
	var buf bytes.Buffer
	for _, v := range values {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
		buf.Write(b[:])
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

const spectrumTemplate = `
<spectrum index="%d" id="scan=%d" defaultArrayLength="%d">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="%d"/>
  <scanList count="1">
    <scan>
      <cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="%s" unitCvRef="UO" unitAccession="%s" unitName="minute"/>
    </scan>
  </scanList>
  <binaryDataArrayList count="2">
    <binaryDataArray encodedLength="0">
      %s
      <cvParam cvRef="MS" accession="MS:1000514" name="m/z array"/>
      <binary>%s</binary>
    </binaryDataArray>
    <binaryDataArray encodedLength="0">
      <cvParam cvRef="MS" accession="MS:1000521" name="32-bit float"/>
      <cvParam cvRef="MS" accession="MS:1000515" name="intensity array"/>
      <binary>%s</binary>
    </binaryDataArray>
  </binaryDataArrayList>
</spectrum>`

func document(spectra ...string) string {
	return `<?xml version="1.0" encoding="ISO-8859-1"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
<run id="run1">
<spectrumList count="` + fmt.Sprint(len(spectra)) + `">` + strings.Join(spectra, "\n") + `
</spectrumList>
</run>
</mzML>
</indexedmzML>`
}

func TestReader(t *testing.T) {
	mz := []float64{100.25, 100.5, 101.125}
	intensity := []float64{10, 2000, 30.5}
	doc := document(
		fmt.Sprintf(spectrumTemplate, 0, 1, 3, 1, "0.5", "UO:0000031",
			`<cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/><cvParam cvRef="MS" accession="MS:1000574" name="zlib compression"/>`,
			encode64(mz, true), encode32(intensity)),
		fmt.Sprintf(spectrumTemplate, 1, 2, 3, 2, "31", "UO:0000010",
			`<cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>`,
			encode64(mz, false), encode32(intensity)),
		fmt.Sprintf(spectrumTemplate, 2, 3, 3, 1, "32.5", "UO:0000010",
			`<cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>`,
			encode64(mz, false), encode32(intensity)),
	)

	r := NewReader(strings.NewReader(doc))
	var rows []core.Row
	var ids []string
	for r.Next() {
		rows = append(rows, r.Row())
		ids = append(ids, r.ID())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []core.Row{
		{RetentionTime: 30, MZ: mz, Intensity: intensity},
		{RetentionTime: 32.5, MZ: mz, Intensity: intensity},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"scan=1", "scan=3"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderAllLevels(t *testing.T) {
	doc := document(
		fmt.Sprintf(spectrumTemplate, 0, 1, 1, 1, "1", "UO:0000010", "", encode32([]float64{100}), encode32([]float64{1})),
		fmt.Sprintf(spectrumTemplate, 1, 2, 1, 2, "2", "UO:0000010", "", encode32([]float64{200}), encode32([]float64{2})),
	)
	r := NewReader(strings.NewReader(doc))
	r.SetMSLevel(0)
	n := 0
	for r.Next() {
		n++
	}
	if r.Err() != nil || n != 2 {
		t.Errorf("read %d spectra, err %v; want 2", n, r.Err())
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "numpress",
			doc: document(fmt.Sprintf(spectrumTemplate, 0, 1, 1, 1, "1", "UO:0000010",
				`<cvParam cvRef="MS" accession="MS:1002312" name="MS-Numpress linear prediction compression"/>`,
				encode32([]float64{1}), encode32([]float64{1}))),
			want: ErrUnsupportedCompression,
		},
		{
			name: "unknown unit",
			doc: document(fmt.Sprintf(spectrumTemplate, 0, 1, 1, 1, "1", "UO:0000032", "",
				encode32([]float64{1}), encode32([]float64{1}))),
			want: ErrUnknownUnit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.doc))
			if r.Next() {
				t.Fatal("Next() = true, want false")
			}
			if !errors.Is(r.Err(), tt.want) {
				t.Errorf("Err() = %v, want %v", r.Err(), tt.want)
			}
			if r.Next() {
				t.Error("Next() after error = true")
			}
		})
	}
}

func TestReaderLengthMismatch(t *testing.T) {
	doc := document(fmt.Sprintf(spectrumTemplate, 0, 1, 2, 1, "1", "UO:0000010", "",
		encode32([]float64{1, 2}), encode32([]float64{1})))
	r := NewReader(strings.NewReader(doc))
	if r.Next() || r.Err() == nil {
		t.Errorf("mismatched arrays accepted, err = %v", r.Err())
	}
}

func TestReaderMalformedXML(t *testing.T) {
	r := NewReader(strings.NewReader(`<mzML><run><spectrumList><spectrum id="x">`))
	if r.Next() || r.Err() == nil {
		t.Errorf("truncated document accepted, err = %v", r.Err())
	}
}
