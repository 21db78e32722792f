package marionette

// Page geometry defaults, in centimetres.
const (
	DefaultPageWidth  = 21.59
	DefaultPageHeight = 27.94
	DefaultMargin     = 1.0
	DefaultScale      = 1.0
)

// PrintOptions control WebDriver:Print. Zero page sizes and scale fall back
// to the defaults; margins are taken as given.
type PrintOptions struct {
	Landscape       bool
	PrintBackground bool
	ShrinkToFit     bool
	Scale           float64

	PageWidth  float64
	PageHeight float64

	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	// PageRanges like "1-3" or "5". Empty prints everything.
	PageRanges []string
}

// DefaultPrintOptions returns a portrait US letter sized page with 1cm
// margins that shrinks content to fit.
func DefaultPrintOptions() PrintOptions {
	return PrintOptions{
		ShrinkToFit:  true,
		Scale:        DefaultScale,
		PageWidth:    DefaultPageWidth,
		PageHeight:   DefaultPageHeight,
		MarginTop:    DefaultMargin,
		MarginBottom: DefaultMargin,
		MarginLeft:   DefaultMargin,
		MarginRight:  DefaultMargin,
	}
}

func (o PrintOptions) withDefaults() PrintOptions {
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.PageWidth == 0 {
		o.PageWidth = DefaultPageWidth
	}
	if o.PageHeight == 0 {
		o.PageHeight = DefaultPageHeight
	}
	return o
}
