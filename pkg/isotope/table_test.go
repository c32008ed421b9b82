package isotope_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ChrisMcGann/isodist/pkg/isotope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_AbundancesSumToOne(t *testing.T) {
	table := isotope.Default()
	require.Greater(t, table.Len(), 20)

	for _, symbol := range table.Symbols() {
		el, err := table.Element(symbol)
		require.NoError(t, err)

		total := 0.0
		for _, iso := range el.Isotopes {
			total += iso.Abundance
		}
		assert.InDelta(t, 1.0, total, isotope.AbundanceTolerance, "element %s", symbol)
	}
}

func TestElement_Monoisotopic(t *testing.T) {
	table := isotope.Default()

	carbon, err := table.Element("C")
	require.NoError(t, err)
	assert.Equal(t, 12, carbon.Monoisotopic().MassNumber)

	// Most abundant iron isotope is not the lightest one
	iron, err := table.Element("Fe")
	require.NoError(t, err)
	assert.Equal(t, 56, iron.Monoisotopic().MassNumber)
	assert.Equal(t, 54, iron.Isotopes[0].MassNumber)

	assert.InDelta(t, 12.0107, carbon.AverageMass(), 1e-3)
}

func TestTable_UnknownElement(t *testing.T) {
	_, err := isotope.Default().Element("Xx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, isotope.ErrUnknownElement))

	var unknown *isotope.UnknownElementError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Xx", unknown.Symbol)
}

func TestTable_FixedIsotope(t *testing.T) {
	table := isotope.Default()

	c13, err := table.Element("C[13]")
	require.NoError(t, err)
	require.Len(t, c13.Isotopes, 1)
	assert.Equal(t, 1.0, c13.Isotopes[0].Abundance)
	assert.InDelta(t, 13.0033548, c13.Monoisotopic().Mass, 1e-6)

	again, err := table.Element("C[13]")
	require.NoError(t, err)
	assert.Same(t, c13, again)

	for _, bad := range []string{"C[14]", "Xx[12]", "C[]", "C[abc]"} {
		_, err := table.Element(bad)
		assert.ErrorIs(t, err, isotope.ErrUnknownElement, bad)
	}
}

func TestTable_FixedIsotopeConcurrent(t *testing.T) {
	table := isotope.Default()

	var wg sync.WaitGroup
	results := make([]*isotope.Element, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			el, err := table.Element("N[15]")
			if err == nil {
				results[i] = el
			}
		}(i)
	}
	wg.Wait()

	for _, el := range results {
		require.NotNil(t, el)
		assert.Same(t, results[0], el)
	}
}

func TestNewTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		element *isotope.Element
		wantErr bool
	}{
		{
			name: "valid two isotopes",
			element: &isotope.Element{Symbol: "X", Isotopes: []isotope.Isotope{
				{Mass: 10.0, Abundance: 0.75},
				{Mass: 11.0, Abundance: 0.25},
			}},
		},
		{
			name: "unsorted input is sorted",
			element: &isotope.Element{Symbol: "X", Isotopes: []isotope.Isotope{
				{Mass: 11.0, Abundance: 0.25},
				{Mass: 10.0, Abundance: 0.75},
			}},
		},
		{
			name: "abundances do not sum to one",
			element: &isotope.Element{Symbol: "X", Isotopes: []isotope.Isotope{
				{Mass: 10.0, Abundance: 0.5},
			}},
			wantErr: true,
		},
		{
			name: "negative abundance",
			element: &isotope.Element{Symbol: "X", Isotopes: []isotope.Isotope{
				{Mass: 10.0, Abundance: 1.5},
				{Mass: 11.0, Abundance: -0.5},
			}},
			wantErr: true,
		},
		{
			name:    "no isotopes",
			element: &isotope.Element{Symbol: "X"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := isotope.NewTable(tt.element)
			if tt.wantErr {
				assert.ErrorIs(t, err, isotope.ErrInvalidTable)
				return
			}
			require.NoError(t, err)

			el, err := table.Element("X")
			require.NoError(t, err)
			assert.Equal(t, 10, el.Isotopes[0].MassNumber)
			assert.Equal(t, 11, el.Isotopes[1].MassNumber)
		})
	}
}

func TestNewTable_CopiesInput(t *testing.T) {
	in := &isotope.Element{Symbol: "X", Isotopes: []isotope.Isotope{{Mass: 10.0, Abundance: 1}}}
	table, err := isotope.NewTable(in)
	require.NoError(t, err)

	in.Isotopes[0].Mass = 99
	el, err := table.Element("X")
	require.NoError(t, err)
	assert.Equal(t, 10.0, el.Isotopes[0].Mass)
}

func TestLoadCSV(t *testing.T) {
	data := `symbol,mass_number,mass,abundance
C,12,12.0,0.9893
C,13,13.00335483507,0.0107

# hydrogen
H,1,1.00782503223,0.999885
H,2,2.01410177812,0.000115
`
	table, err := isotope.LoadCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "H"}, table.Symbols())

	h, err := table.Element("H")
	require.NoError(t, err)
	require.Len(t, h.Isotopes, 2)
	assert.Equal(t, 2, h.Isotopes[1].MassNumber)
}

func TestLoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"too few fields", "header\nC,12,12.0\n"},
		{"bad mass number", "header\nC,x,12.0,1\n"},
		{"bad mass", "header\nC,12,twelve,1\n"},
		{"bad abundance", "header\nC,12,12.0,one\n"},
		{"abundance sum", "header\nC,12,12.0,0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := isotope.LoadCSV(strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}
