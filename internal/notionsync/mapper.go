package notionsync

import (
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/envelope"
)

// Property names of the envelopes database.
const (
	PropName          = "Name"
	PropEnvelopeID    = "Envelope ID"
	PropKind          = "Kind"
	PropStatus        = "Status"
	PropBalance       = "Balance"
	PropCurrency      = "Currency"
	PropRollover      = "Rollover"
	PropFunding       = "Monthly Funding"
	PropLastPeriod    = "Last Period"
	PropAllowNegative = "Allow Negative"
	PropMinBalance    = "Min Balance"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}
}

func number(d decimal.Decimal) notionapi.NumberProperty {
	f, _ := d.Float64()
	return notionapi.NumberProperty{Number: f}
}

// EnvelopeProperties maps an envelope onto database properties. Optional
// fields are omitted when unset.
func EnvelopeProperties(e *envelope.Envelope) notionapi.Properties {
	props := notionapi.Properties{
		PropName:          notionapi.TitleProperty{Title: richText(e.Name)},
		PropEnvelopeID:    notionapi.RichTextProperty{RichText: richText(e.ID)},
		PropKind:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(e.Kind)}},
		PropStatus:        notionapi.SelectProperty{Select: notionapi.Option{Name: string(e.Status)}},
		PropBalance:       number(e.Balance.Amount),
		PropCurrency:      notionapi.SelectProperty{Select: notionapi.Option{Name: string(e.Currency())}},
		PropAllowNegative: notionapi.CheckboxProperty{Checkbox: e.AllowNegative},
	}
	if e.Rollover != nil {
		props[PropRollover] = notionapi.SelectProperty{Select: notionapi.Option{Name: e.Rollover.Name()}}
	}
	if e.Funding != nil && e.Funding.Frequency == envelope.Monthly {
		props[PropFunding] = number(e.Funding.Amount.Amount)
	}
	if e.LastPeriod != "" {
		props[PropLastPeriod] = notionapi.RichTextProperty{RichText: richText(e.LastPeriod)}
	}
	if e.MinBalance != nil {
		props[PropMinBalance] = number(*e.MinBalance)
	}
	return props
}

// envelopeIDOf reads the Envelope ID property of a queried page.
func envelopeIDOf(page notionapi.Page) string {
	prop, ok := page.Properties[PropEnvelopeID]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	if rt.RichText[0].PlainText != "" {
		return rt.RichText[0].PlainText
	}
	if rt.RichText[0].Text != nil {
		return rt.RichText[0].Text.Content
	}
	return ""
}
