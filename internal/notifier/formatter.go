package notifier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"CrossSentinel/internal/model"
)

// esDateLayout mirrors the es-ES locale: day/month/year, 24h clock.
const esDateLayout = "2/1/2006, 15:04:05"

var usd = message.NewPrinter(language.AmericanEnglish)

// FormatPrice renders p as US currency, e.g. $1,234.56.
func FormatPrice(p float64) string {
	rounded := decimal.NewFromFloat(p).Round(2).InexactFloat64()
	if rounded < 0 {
		return usd.Sprintf("-$%.2f", -rounded)
	}
	return usd.Sprintf("$%.2f", rounded)
}

// FormatSignal formats a BUY or SELL result into a Telegram Markdown message.
func FormatSignal(r *model.SignalResult) string {
	icon, label := "✅", "Compra"
	if r.Kind == model.SignalSell {
		icon, label = "❌", "Venta"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *Señal de %s*\n\n", icon, label)
	fmt.Fprintf(&b, "*Activo:* %s\n", r.Symbol)
	fmt.Fprintf(&b, "*Precio:* %s\n", FormatPrice(r.Price))
	fmt.Fprintf(&b, "*Fecha:* %s\n\n", r.Date.Format(esDateLayout))
	fmt.Fprintf(&b, "*Motivo:* %s", r.Reason)
	return b.String()
}

// FormatDetails renders the indicator breakdown of a result on one line.
func FormatDetails(d model.SignalDetails) string {
	return fmt.Sprintf("SMA50: %.2f (prev %.2f), SMA200: %.2f (prev %.2f), RSI: %.2f, "+
		"Volumen: %.0f, Vol. Promedio: %.0f. Cruce Dorado: %t, Cruce de la Muerte: %t.",
		d.LastSMA50, d.PrevSMA50, d.LastSMA200, d.PrevSMA200, d.LastRSI,
		d.LastVolume, d.LastAvgVolume, d.GoldenCross, d.DeathCross)
}

// FormatAnalysis formats any result, firing or not, as a reply to /analyze.
func FormatAnalysis(r *model.SignalResult) string {
	if r.Fired() {
		return FormatSignal(r) + "\n\n" + FormatDetails(r.Details)
	}
	return fmt.Sprintf("ℹ️ *%s* %s\n*Precio:* %s\n*Motivo:* %s\n\n%s",
		r.Symbol, r.Date.Format(esDateLayout), FormatPrice(r.Price), r.Reason, FormatDetails(r.Details))
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "🤖 *CrossSentinel*\n\n" +
		"/run - analizar todos los activos ahora\n" +
		"/analyze SYMBOL - analizar un activo\n" +
		"/help - mostrar esta ayuda"
}
