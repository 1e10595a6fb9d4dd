// Package mzml provides a streaming reader for profile or centroid scans in
// mzML files.
package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

var (
	// ErrUnsupportedCompression means a binary array uses MS-Numpress.
	ErrUnsupportedCompression = errors.New("mzML: unsupported compression")
	// ErrMissingRetentionTime means a spectrum has no scan start time.
	ErrMissingRetentionTime = errors.New("mzML: missing scan start time")
	// ErrUnknownUnit means a retention time unit is neither seconds nor minutes.
	ErrUnknownUnit = errors.New("mzML: can't handle unit")
)

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

type binaryDataArray struct {
	CvPar  []cvParam `xml:"cvParam"`
	Binary string    `xml:"binary"`
}

// spectrum holds the parts of an mzML spectrum element needed to build a row.
type spectrum struct {
	Index              int       `xml:"index,attr"`
	ID                 string    `xml:"id,attr"`
	DefaultArrayLength int       `xml:"defaultArrayLength,attr"`
	CvPar              []cvParam `xml:"cvParam"`
	Scans              []struct {
		CvPar []cvParam `xml:"cvParam"`
	} `xml:"scanList>scan"`
	BinaryDataArrays []binaryDataArray `xml:"binaryDataArrayList>binaryDataArray"`
}

// Reader streams rows out of an mzML document, one per spectrum of the
// selected MS level.
type Reader struct {
	decoder *xml.Decoder
	msLevel int
	row     core.Row
	id      string
	err     error
}

// NewReader creates a reader returning MS1 spectra only.
func NewReader(r io.Reader) *Reader {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &Reader{decoder: d, msLevel: 1}
}

// SetMSLevel selects the MS level to return. Zero returns every spectrum.
func (r *Reader) SetMSLevel(level int) {
	r.msLevel = level
}

// Next advances to the next spectrum of the selected level. Returns false at
// the end of the document or on error.
func (r *Reader) Next() bool {
	r.row = core.Row{}
	r.id = ""
	if r.err != nil {
		return false
	}

	for {
		tok, err := r.decoder.Token()
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}

		var sp spectrum
		if err := r.decoder.DecodeElement(&sp, &start); err != nil {
			r.err = err
			return false
		}
		level, err := msLevel(&sp)
		if err != nil {
			r.err = fmt.Errorf("spectrum %s: %w", sp.ID, err)
			return false
		}
		if r.msLevel != 0 && level != r.msLevel {
			continue
		}
		row, err := toRow(&sp)
		if err != nil {
			r.err = fmt.Errorf("spectrum %s: %w", sp.ID, err)
			return false
		}
		r.row = row
		r.id = sp.ID
		return true
	}
}

// Row returns the current spectrum as a row.
func (r *Reader) Row() core.Row {
	return r.row
}

// ID returns the native identifier of the current spectrum.
func (r *Reader) ID() string {
	return r.id
}

// Err returns any error encountered during reading.
func (r *Reader) Err() error {
	return r.err
}

// msLevel reads MS:1000511, defaulting to 1.
func msLevel(sp *spectrum) (int, error) {
	for _, cv := range sp.CvPar {
		if cv.Accession == "MS:1000511" {
			return strconv.Atoi(cv.Value)
		}
	}
	return 1, nil
}

// retentionTime reads the scan start time (MS:1000016) in seconds.
func retentionTime(sp *spectrum) (float64, error) {
	for _, scan := range sp.Scans {
		for _, cv := range scan.CvPar {
			if cv.Accession != "MS:1000016" {
				continue
			}
			rt, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid scan start time: %w", err)
			}
			switch cv.UnitAccession {
			case "UO:0000031", "MS:1000038": // minute
				return rt * 60, nil
			case "UO:0000010", "": // second
				return rt, nil
			default:
				return 0, fmt.Errorf("%w %s", ErrUnknownUnit, cv.UnitAccession)
			}
		}
	}
	return 0, ErrMissingRetentionTime
}

func toRow(sp *spectrum) (core.Row, error) {
	rt, err := retentionTime(sp)
	if err != nil {
		return core.Row{}, err
	}
	row := core.Row{RetentionTime: rt}
	for i := range sp.BinaryDataArrays {
		b := &sp.BinaryDataArrays[i]
		kind, values, err := decodeArray(b)
		if err != nil {
			return core.Row{}, err
		}
		switch kind {
		case mzArray:
			row.MZ = values
		case intensityArray:
			row.Intensity = values
		}
	}
	if len(row.MZ) != len(row.Intensity) {
		return core.Row{}, fmt.Errorf("m/z array has %d values, intensity array has %d", len(row.MZ), len(row.Intensity))
	}
	if row.MZ == nil {
		row.MZ, row.Intensity = []float64{}, []float64{}
	}
	return row, nil
}

type arrayKind int

const (
	otherArray arrayKind = iota
	mzArray
	intensityArray
)

// decodeArray decodes one binaryDataArray.
//
// CV terms used:
// MS:1000574 zlib compression
// MS:1000576 no compression
// MS:1002312-MS:1002314, MS:1002746-MS:1002748 MS-Numpress variants
// MS:1000514 m/z array
// MS:1000515 intensity array
// MS:1000521 32-bit float
// MS:1000523 64-bit float
func decodeArray(b *binaryDataArray) (arrayKind, []float64, error) {
	kind := otherArray
	zlibCompression := false
	bits64 := false
	for _, cv := range b.CvPar {
		switch cv.Accession {
		case "MS:1000574":
			zlibCompression = true
		case "MS:1000514":
			kind = mzArray
		case "MS:1000515":
			kind = intensityArray
		case "MS:1000523":
			bits64 = true
		case "MS:1002312", "MS:1002313", "MS:1002314",
			"MS:1002746", "MS:1002747", "MS:1002748":
			return kind, nil, fmt.Errorf("%w (CV term %s)", ErrUnsupportedCompression, cv.Accession)
		}
	}
	if kind == otherArray {
		return kind, nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace([]byte(b.Binary))))
	if err != nil {
		return kind, nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	if zlibCompression {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return kind, nil, fmt.Errorf("invalid zlib data: %w", err)
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return kind, nil, fmt.Errorf("invalid zlib data: %w", err)
		}
	}

	var values []float64
	if bits64 {
		values = make([]float64, len(data)/8)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	} else {
		values = make([]float64, len(data)/4)
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return kind, values, nil
}
