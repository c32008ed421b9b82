package isotope

import "sync"

// Natural isotope masses and abundances (NIST Atomic Weights and Isotopic
// Compositions).
var naturalElements = []*Element{
	{Symbol: "H", Isotopes: []Isotope{
		{1, 1.00782503223, 0.999885},
		{2, 2.01410177812, 0.000115},
	}},
	{Symbol: "He", Isotopes: []Isotope{
		{3, 3.0160293201, 0.00000134},
		{4, 4.00260325413, 0.99999866},
	}},
	{Symbol: "Li", Isotopes: []Isotope{
		{6, 6.0151228874, 0.0759},
		{7, 7.0160034366, 0.9241},
	}},
	{Symbol: "B", Isotopes: []Isotope{
		{10, 10.01293695, 0.199},
		{11, 11.00930536, 0.801},
	}},
	{Symbol: "C", Isotopes: []Isotope{
		{12, 12.0000000000, 0.9893},
		{13, 13.00335483507, 0.0107},
	}},
	{Symbol: "N", Isotopes: []Isotope{
		{14, 14.00307400443, 0.99636},
		{15, 15.00010889888, 0.00364},
	}},
	{Symbol: "O", Isotopes: []Isotope{
		{16, 15.99491461957, 0.99757},
		{17, 16.99913175650, 0.00038},
		{18, 17.99915961286, 0.00205},
	}},
	{Symbol: "F", Isotopes: []Isotope{
		{19, 18.99840316273, 1},
	}},
	{Symbol: "Na", Isotopes: []Isotope{
		{23, 22.9897692820, 1},
	}},
	{Symbol: "Mg", Isotopes: []Isotope{
		{24, 23.985041697, 0.7899},
		{25, 24.985836976, 0.1000},
		{26, 25.982592968, 0.1101},
	}},
	{Symbol: "Al", Isotopes: []Isotope{
		{27, 26.98153853, 1},
	}},
	{Symbol: "Si", Isotopes: []Isotope{
		{28, 27.97692653465, 0.92223},
		{29, 28.97649466490, 0.04685},
		{30, 29.973770136, 0.03092},
	}},
	{Symbol: "P", Isotopes: []Isotope{
		{31, 30.97376199842, 1},
	}},
	{Symbol: "S", Isotopes: []Isotope{
		{32, 31.9720711744, 0.9499},
		{33, 32.9714589098, 0.0075},
		{34, 33.967867004, 0.0425},
		{36, 35.96708071, 0.0001},
	}},
	{Symbol: "Cl", Isotopes: []Isotope{
		{35, 34.968852682, 0.7576},
		{37, 36.965902602, 0.2424},
	}},
	{Symbol: "K", Isotopes: []Isotope{
		{39, 38.9637064864, 0.932581},
		{40, 39.963998166, 0.000117},
		{41, 40.9618252579, 0.067302},
	}},
	{Symbol: "Ca", Isotopes: []Isotope{
		{40, 39.962590863, 0.96941},
		{42, 41.95861783, 0.00647},
		{43, 42.95876644, 0.00135},
		{44, 43.9554816, 0.02086},
		{46, 45.953689, 0.00004},
		{48, 47.95252276, 0.00187},
	}},
	{Symbol: "Mn", Isotopes: []Isotope{
		{55, 54.93804391, 1},
	}},
	{Symbol: "Fe", Isotopes: []Isotope{
		{54, 53.93960899, 0.05845},
		{56, 55.93493633, 0.91754},
		{57, 56.93539284, 0.02119},
		{58, 57.93327443, 0.00282},
	}},
	{Symbol: "Co", Isotopes: []Isotope{
		{59, 58.93319429, 1},
	}},
	{Symbol: "Ni", Isotopes: []Isotope{
		{58, 57.93534241, 0.68077},
		{60, 59.93078588, 0.26223},
		{61, 60.93105557, 0.011399},
		{62, 61.92834537, 0.036346},
		{64, 63.92796682, 0.009255},
	}},
	{Symbol: "Cu", Isotopes: []Isotope{
		{63, 62.92959772, 0.6915},
		{65, 64.92778970, 0.3085},
	}},
	{Symbol: "Zn", Isotopes: []Isotope{
		{64, 63.92914201, 0.4917},
		{66, 65.92603381, 0.2773},
		{67, 66.92712775, 0.0404},
		{68, 67.92484455, 0.1845},
		{70, 69.9253192, 0.0061},
	}},
	{Symbol: "Se", Isotopes: []Isotope{
		{74, 73.922475934, 0.0089},
		{76, 75.919213704, 0.0937},
		{77, 76.919914154, 0.0763},
		{78, 77.91730928, 0.2377},
		{80, 79.9165218, 0.4961},
		{82, 81.9166995, 0.0873},
	}},
	{Symbol: "Br", Isotopes: []Isotope{
		{79, 78.9183376, 0.5069},
		{81, 80.9162897, 0.4931},
	}},
	{Symbol: "I", Isotopes: []Isotope{
		{127, 126.9044719, 1},
	}},
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the built-in natural abundance table. It is built once
// and shared; callers must not modify elements obtained from it.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := NewTable(naturalElements...)
		if err != nil {
			panic("isotope: built-in table is invalid: " + err.Error())
		}
		defaultTable = t
	})
	return defaultTable
}
