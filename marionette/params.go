package marionette

import (
	"fmt"
	"sort"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"
)

type newSessionParams struct {
	capabilities map[string]interface{}
}

// MarshalEasyJSON writes {} unless extra capabilities were requested, in
// which case they go under capabilities.alwaysMatch.
func (p newSessionParams) MarshalEasyJSON(w *jwriter.Writer) {
	if len(p.capabilities) == 0 {
		w.RawString("{}")
		return
	}
	w.RawString(`{"capabilities":{"alwaysMatch":`)
	writeCapability(w, p.capabilities)
	w.RawString("}}")
}

// writeCapability writes the value shapes a capabilities map can hold. Map
// keys are sorted so the command bytes are stable.
func writeCapability(w *jwriter.Writer, v interface{}) {
	switch v := v.(type) {
	case nil:
		w.RawString("null")
	case string:
		w.String(v)
	case bool:
		w.Bool(v)
	case int:
		w.Int(v)
	case int64:
		w.Int64(v)
	case uint64:
		w.Uint64(v)
	case float64:
		w.Float64(v)
	case []interface{}:
		w.RawByte('[')
		for i, e := range v {
			if i > 0 {
				w.RawByte(',')
			}
			writeCapability(w, e)
		}
		w.RawByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.RawByte('{')
		for i, k := range keys {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(k)
			w.RawByte(':')
			writeCapability(w, v[k])
		}
		w.RawByte('}')
	case easyjson.Marshaler:
		v.MarshalEasyJSON(w)
	default:
		if w.Error == nil {
			w.Error = fmt.Errorf("unsupported capability value of type %T", v)
		}
	}
}

type navigateParams struct {
	url string
}

func (p navigateParams) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"url":`)
	w.String(p.url)
	w.RawByte('}')
}

type executeScriptParams struct {
	script string
}

func (p executeScriptParams) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"script":`)
	w.String(p.script)
	w.RawString(`,"args":[]}`)
}

type findElementsParams struct {
	selector string
}

func (p findElementsParams) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"using":"css selector","value":`)
	w.String(p.selector)
	w.RawByte('}')
}

type screenshotParams struct {
	id ElementID
}

func (p screenshotParams) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"id":`)
	w.String(string(p.id))
	w.RawString(`,"full":false,"highlights":[],"hash":false}`)
}

type printParams struct {
	opts PrintOptions
}

func (p printParams) MarshalEasyJSON(w *jwriter.Writer) {
	o := p.opts
	orientation := "portrait"
	if o.Landscape {
		orientation = "landscape"
	}

	w.RawString(`{"orientation":`)
	w.String(orientation)
	w.RawString(`,"background":`)
	w.Bool(o.PrintBackground)
	w.RawString(`,"scale":`)
	w.Float64(o.Scale)
	w.RawString(`,"shrinkToFit":`)
	w.Bool(o.ShrinkToFit)
	w.RawString(`,"page":{"width":`)
	w.Float64(o.PageWidth)
	w.RawString(`,"height":`)
	w.Float64(o.PageHeight)
	w.RawString(`},"margin":{"top":`)
	w.Float64(o.MarginTop)
	w.RawString(`,"bottom":`)
	w.Float64(o.MarginBottom)
	w.RawString(`,"left":`)
	w.Float64(o.MarginLeft)
	w.RawString(`,"right":`)
	w.Float64(o.MarginRight)
	w.RawString(`},"pageRanges":[`)
	for i, r := range o.PageRanges {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(r)
	}
	w.RawString(`]}`)
}

type quitParams struct{}

func (quitParams) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"flags":["eForceQuit"]}`)
}
