package cluster

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

func TestDBSCAN(t *testing.T) {
	tests := []struct {
		name         string
		values       []float64
		radius       float64
		minNeighbors int
		want         []int
	}{
		{
			name:         "two clusters and noise",
			values:       []float64{5, 0, 0.1, 9, 5.05, 0.2},
			radius:       0.1,
			minNeighbors: 2,
			want:         []int{0, 1, 1, Noise, 0, 1},
		},
		{
			name:         "radius is inclusive",
			values:       []float64{0, 0.5},
			radius:       0.5,
			minNeighbors: 2,
			want:         []int{0, 0},
		},
		{
			name:         "self counts towards neighbourhood",
			values:       []float64{1, 10},
			radius:       0.1,
			minNeighbors: 1,
			want:         []int{0, 1},
		},
		{
			name:         "border value joins the first cluster to reach it",
			values:       []float64{0, 0.1, 0.2, 0.3, 0.4},
			radius:       0.1000001,
			minNeighbors: 3,
			want:         []int{0, 0, 0, 0, 0},
		},
		{
			name:         "too sparse",
			values:       []float64{0, 1, 2},
			radius:       0.5,
			minNeighbors: 2,
			want:         []int{Noise, Noise, Noise},
		},
		{
			name:         "empty",
			values:       nil,
			radius:       0.5,
			minNeighbors: 2,
			want:         []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DBSCAN{}.Cluster(tt.values, tt.radius, tt.minNeighbors)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Cluster() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDBSCANChainedBorder(t *testing.T) {
	// 0 and 2 are border values of the core value 1 only.
	got, err := DBSCAN{}.Cluster([]float64{0, 1, 2, 5}, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, Noise}, got)
}

func TestDBSCANErrors(t *testing.T) {
	var pErr *core.ParameterError
	_, err := DBSCAN{}.Cluster([]float64{1}, 0, 2)
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "radius", pErr.Param)

	_, err = DBSCAN{}.Cluster([]float64{1}, 0.1, 0)
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "min_neighbors", pErr.Param)

	_, err = DBSCAN{}.Cluster([]float64{1, math.NaN()}, 0.1, 1)
	assert.Error(t, err)
}

func TestStandardize(t *testing.T) {
	got := Standardize([]float64{1, 2, 3, 4})
	sum, sq := 0.0, 0.0
	for _, v := range got {
		sum += v
		sq += v * v
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.InDelta(t, 1, sq/float64(len(got)), 1e-12)

	assert.Equal(t, []float64{0, 0}, Standardize([]float64{7, 7}))
	assert.Empty(t, Standardize(nil))
}

func TestPeaksDropsNoise(t *testing.T) {
	peaks := []core.Peak{
		{ScanID: "a", RetentionTime: 1, Intensity: 10, MZ: 10.0},
		{ScanID: "b", RetentionTime: 2, Intensity: 20, MZ: 10.05},
		{ScanID: "c", RetentionTime: 3, Intensity: 30, MZ: 50.0},
	}
	got, err := Peaks(peaks, DBSCAN{}, DefaultRadius, DefaultMinNeighbors)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, peaks[0], got[0].Peak)
	assert.Equal(t, peaks[1], got[1].Peak)
	assert.Equal(t, got[0].Label, got[1].Label)
}

func TestPeaksEmptyAndInvalid(t *testing.T) {
	got, err := Peaks(nil, DBSCAN{}, DefaultRadius, DefaultMinNeighbors)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Peaks(nil, DBSCAN{}, -1, DefaultMinNeighbors)
	var pErr *core.ParameterError
	assert.ErrorAs(t, err, &pErr)
}

func TestPeaksIsOrderIndependent(t *testing.T) {
	peaks := []core.Peak{
		{ScanID: "a", MZ: 300.0}, {ScanID: "b", MZ: 100.0}, {ScanID: "c", MZ: 300.01},
		{ScanID: "d", MZ: 100.02}, {ScanID: "e", MZ: 700.0},
	}
	reversed := make([]core.Peak, len(peaks))
	for i, p := range peaks {
		reversed[len(peaks)-1-i] = p
	}

	groups := func(labeled []LabeledPeak) map[string]string {
		first := map[int]string{}
		out := map[string]string{}
		for _, lp := range labeled {
			if _, ok := first[lp.Label]; !ok {
				first[lp.Label] = lp.ScanID
			}
		}
		for _, lp := range labeled {
			out[lp.ScanID] = first[lp.Label]
		}
		return out
	}

	a, err := Peaks(peaks, DBSCAN{}, DefaultRadius, DefaultMinNeighbors)
	require.NoError(t, err)
	b, err := Peaks(reversed, DBSCAN{}, DefaultRadius, DefaultMinNeighbors)
	require.NoError(t, err)
	require.Len(t, a, 4)
	require.Len(t, b, 4)

	ga, gb := groups(a), groups(b)
	assert.Equal(t, ga["a"] == ga["c"], gb["a"] == gb["c"])
	assert.Equal(t, ga["b"] == ga["d"], gb["b"] == gb["d"])
	assert.NotEqual(t, ga["a"], ga["b"])
}
