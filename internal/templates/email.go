// Package templates renders outbound message bodies.
package templates

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

type PurchaseConfirmationData struct {
	StudentName string
	CourseTitle string
	Amount      string
	CurrencyID  string
	PaymentID   string
	CourseURL   string
}

// PurchaseConfirmation is the HTML body of the purchase confirmation email.
func PurchaseConfirmation(d PurchaseConfirmationData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := d.StudentName
		if name == "" {
			name = "there"
		}

		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
<h2>Payment confirmed</h2>
<p>Hi %s,</p>
<p>Your payment of <strong>%s %s</strong> for <strong>%s</strong> was approved and you are enrolled.</p>
`,
			templ.EscapeString(name),
			templ.EscapeString(d.CurrencyID),
			templ.EscapeString(d.Amount),
			templ.EscapeString(d.CourseTitle),
		)
		if err != nil {
			return err
		}

		if d.CourseURL != "" {
			url := templ.EscapeString(string(templ.URL(d.CourseURL)))
			if _, err := fmt.Fprintf(w, `<p><a href="%s" style="background:#2563eb;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none;">Start learning</a></p>
`, url); err != nil {
				return err
			}
		}

		_, err = fmt.Fprintf(w, `<p style="color:#6b7280;font-size:12px;">Payment reference: %s</p>
</body>
</html>
`, templ.EscapeString(d.PaymentID))
		return err
	})
}

// Render renders a component into a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
