package listing

import (
	"bytes"
	"html/template"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var popupTemplate = template.Must(template.New("popup").Parse(
	`<div class="property-popup">` +
		`<strong class="property-popup__title">{{.Title}}</strong>` +
		`<div class="property-popup__status"><span class="property-popup__dot" style="background-color: {{.Color}}"></span>{{.Status}}</div>` +
		`{{if .Price}}<div class="property-popup__price">{{.Price}}</div>{{end}}` +
		`{{if .Address}}<div class="property-popup__address">{{.Address}}</div>{{end}}` +
		`</div>`))

// PriceFormatter renders prices with thousands separators behind a
// currency symbol.
type PriceFormatter struct {
	Symbol  string
	printer *message.Printer
}

// NewPriceFormatter builds a formatter for symbol using English grouping.
func NewPriceFormatter(symbol string) PriceFormatter {
	return PriceFormatter{Symbol: symbol, printer: message.NewPrinter(language.English)}
}

// Format renders v as e.g. "৳1,250,000".
func (f PriceFormatter) Format(v float64) string {
	p := f.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	return f.Symbol + p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(2)))
}

// PopupContent is the data shown in a marker popup.
type PopupContent struct {
	Title   string
	Status  string
	Color   string
	Price   string
	Address string
}

// NewPopupContent derives popup fields from a property. Price is empty when
// the record has no numeric price, Address when it has none.
func NewPopupContent(p Property, prices PriceFormatter) PopupContent {
	st := p.Status()
	c := PopupContent{
		Title:   strings.TrimSpace(p.Title),
		Status:  st.Label(),
		Color:   st.Color(),
		Address: p.DisplayAddress(),
	}
	if c.Title == "" {
		c.Title = "Untitled property"
	}
	if v, ok := p.PriceValue(); ok {
		c.Price = prices.Format(v)
	}
	return c
}

// HTML renders the popup markup with all fields escaped.
func (c PopupContent) HTML() string {
	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, struct {
		PopupContent
		Color template.CSS
	}{PopupContent: c, Color: template.CSS(c.Color)}); err != nil {
		return ""
	}
	return buf.String()
}
