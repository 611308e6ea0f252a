package annotate

const (
	DefaultCurrencySymbol    = "₹"
	DefaultProximityWindow   = 200
	DefaultMinTitleLength    = 5
	DefaultMinKeywordLength  = 3
	DefaultMajorityThreshold = 2
)

// Options carries the tunables shared by the segmenter, extractor and resolver.
// Lengths are counted in code points and are exclusive lower bounds: a title
// must be longer than MinTitleLength, a key word longer than MinKeywordLength.
type Options struct {
	CurrencySymbol    string
	ProximityWindow   int
	MinTitleLength    int
	MinKeywordLength  int
	MajorityThreshold int
}

// DefaultOptions returns the rupee currency, a 200 character window and the default thresholds.
func DefaultOptions() Options {
	return Options{
		CurrencySymbol:    DefaultCurrencySymbol,
		ProximityWindow:   DefaultProximityWindow,
		MinTitleLength:    DefaultMinTitleLength,
		MinKeywordLength:  DefaultMinKeywordLength,
		MajorityThreshold: DefaultMajorityThreshold,
	}
}

// withDefaults fills zero values so a partially populated Options from config
// still behaves.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = d.CurrencySymbol
	}
	if o.ProximityWindow <= 0 {
		o.ProximityWindow = d.ProximityWindow
	}
	if o.MinTitleLength <= 0 {
		o.MinTitleLength = d.MinTitleLength
	}
	if o.MinKeywordLength <= 0 {
		o.MinKeywordLength = d.MinKeywordLength
	}
	if o.MajorityThreshold <= 0 {
		o.MajorityThreshold = d.MajorityThreshold
	}
	return o
}
