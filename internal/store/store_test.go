package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-cli/pkg/solar"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func fixtureInstallations() []solar.Installation {
	return []solar.Installation{
		{CaseID: 30, State: "TX", County: "Pecos County", Latitude: 31, Longitude: -102.9,
			Name: strPtr("Pecos One"), Year: intPtr(2011), CapacityAC: floatPtr(50), CapacityDC: floatPtr(60)},
		{CaseID: 10, State: "CA", County: "Kern County", Latitude: 35.1, Longitude: -118.4,
			Name: strPtr("Kern Solar"), Year: intPtr(2015), CapacityAC: floatPtr(10), Technology: strPtr("PV"),
			AxisType: strPtr("single-axis"), Area: floatPtr(1000), HasBattery: true},
		{CaseID: 20, State: "CA", County: "Kern County", Latitude: 35.2, Longitude: -118.5},
		{CaseID: 40, State: "CA", County: "Riverside County", Latitude: 33.9, Longitude: -117.3,
			Year: intPtr(2020), CapacityAC: floatPtr(30)},
	}
}

func caseIDs(insts []solar.Installation) []int64 {
	ids := make([]int64, 0, len(insts))
	for _, in := range insts {
		ids = append(ids, in.CaseID)
	}
	return ids
}

// runStoreContract exercises the behavior every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("replace and list", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		n, err := st.ReplaceInstallations(ctx, fixtureInstallations())
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		got, err := st.ListInstallations(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 20, 30, 40}, caseIDs(got))

		kern := got[0]
		assert.Equal(t, "CA", kern.State)
		assert.Equal(t, "Kern County", kern.County)
		assert.InDelta(t, 35.1, kern.Latitude, 1e-9)
		require.NotNil(t, kern.Name)
		assert.Equal(t, "Kern Solar", *kern.Name)
		require.NotNil(t, kern.Year)
		assert.Equal(t, 2015, *kern.Year)
		require.NotNil(t, kern.Area)
		assert.InDelta(t, 1000.0, *kern.Area, 1e-9)
		assert.True(t, kern.HasBattery)

		bare := got[1]
		assert.Nil(t, bare.Name)
		assert.Nil(t, bare.Year)
		assert.Nil(t, bare.CapacityAC)
		assert.Nil(t, bare.Technology)
		assert.False(t, bare.HasBattery)
	})

	t.Run("replace drops previous rows", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		_, err := st.ReplaceInstallations(ctx, fixtureInstallations())
		require.NoError(t, err)
		n, err := st.ReplaceInstallations(ctx, []solar.Installation{
			{CaseID: 99, State: "NV", Latitude: 36, Longitude: -115},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := st.ListInstallations(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []int64{99}, caseIDs(got))
	})

	t.Run("duplicate case ids keep last", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		n, err := st.ReplaceInstallations(ctx, []solar.Installation{
			{CaseID: 1, State: "NV", County: "Clark County", Latitude: 36, Longitude: -115},
			{CaseID: 1, State: "NV", County: "Nye County", Latitude: 36, Longitude: -116},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := st.ListInstallations(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Nye County", got[0].County)
	})

	t.Run("filters", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		_, err := st.ReplaceInstallations(ctx, fixtureInstallations())
		require.NoError(t, err)

		tests := []struct {
			name   string
			filter Filter
			want   []int64
		}{
			{"state", Filter{State: "ca"}, []int64{10, 20, 40}},
			{"year", Filter{Year: 2020}, []int64{40}},
			{"min capacity", Filter{MinCapacity: 30}, []int64{30, 40}},
			{"limit", Filter{Limit: 2}, []int64{10, 20}},
			{"offset without limit", Filter{Offset: 3}, []int64{40}},
			{"offset and limit", Filter{Offset: 1, Limit: 2}, []int64{20, 30}},
			{"combined", Filter{State: "CA", MinCapacity: 5, Limit: 1}, []int64{10}},
			{"no match", Filter{State: "NY"}, []int64{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := st.ListInstallations(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, caseIDs(got))
			})
		}
	})

	t.Run("import runs", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		latest, err := st.LatestImport(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)

		first, err := st.CreateImport(ctx, "solar.csv", "")
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, ImportRunning, first.Status)
		require.NoError(t, st.CompleteImport(ctx, first.ID, 10, 2, nil))

		second, err := st.CreateImport(ctx, "https://example.com/uspvdb.zip", `"v2"`)
		require.NoError(t, err)
		require.NoError(t, st.CompleteImport(ctx, second.ID, 0, 0, errors.New("download failed")))

		latest, err = st.LatestImport(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, `"v2"`, latest.ETag)
		assert.Equal(t, ImportFailed, latest.Status)
		assert.Equal(t, "download failed", latest.Error)
		assert.NotNil(t, latest.FinishedAt)
	})

	t.Run("complete unknown import", func(t *testing.T) {
		st := newStore(t)
		err := st.CompleteImport(context.Background(), "missing", 0, 0, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "import run not found")
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		st := NewMemory()
		require.NoError(t, st.Migrate(context.Background()))
		return st
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return newTestSQLiteStore(t)
	})
}

func TestDedupe(t *testing.T) {
	got := dedupe([]solar.Installation{
		{CaseID: 3, County: "a"},
		{CaseID: 1},
		{CaseID: 3, County: "b"},
	})
	assert.Equal(t, []int64{1, 3}, caseIDs(got))
	assert.Equal(t, "b", got[1].County)
}

func TestImportStatus(t *testing.T) {
	assert.Equal(t, ImportComplete, importStatus(nil))
	assert.Equal(t, ImportFailed, importStatus(errors.New("x")))
	assert.Nil(t, errorText(nil))
	assert.Equal(t, "x", *errorText(errors.New("x")))
}
