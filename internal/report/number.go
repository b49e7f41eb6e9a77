package report

import "strconv"

var units = []struct {
	scale  float64
	suffix string
}{
	{1e12, "T"},
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "K"},
}

// Number formats n with two decimals and a metric suffix: 1823691800 is
// "1.82G", 11689512 is "11.69M". Values below 1000 are printed as is.
func Number(n uint64) string {
	f := float64(n)
	for _, u := range units {
		if f >= u.scale {
			return strconv.FormatFloat(f/u.scale, 'f', 2, 64) + u.suffix
		}
	}
	return strconv.FormatUint(n, 10)
}
