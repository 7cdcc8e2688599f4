package notification

import (
	"bytes"
	"html/template"

	sharedDomain "github.com/sakashimaa/electro-shop/pkg/domain"
)

var (
	orderPlacedTmpl = template.Must(template.New("order_placed").Parse(`
<h1>Thank you for your order, {{.CustomerName}}!</h1>
<p>Order #{{.OrderID}} has been received and is now pending.</p>
<table>
{{range .Items}}<tr><td>{{.ProductName}}</td><td>x{{.Quantity}}</td><td>{{.UnitPrice}}</td></tr>
{{end}}</table>
<p><strong>Total: {{.Total}}</strong></p>
`))

	statusChangedTmpl = template.Must(template.New("status_changed").Parse(`
<h1>Your order #{{.OrderID}} is now {{.To}}</h1>
<p>Previous status: {{.From}}.</p>
`))

	welcomeTmpl = template.Must(template.New("welcome").Parse(`
<h1>Welcome to Electro Shop, {{.FirstName}}!</h1>
<p>Your account is ready. Happy shopping.</p>
`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func orderPlacedMessage(e sharedDomain.OrderPlacedEvent) (Message, error) {
	body, err := render(orderPlacedTmpl, e)
	if err != nil {
		return Message{}, err
	}
	return Message{To: e.Email, Subject: "Your Electro Shop order is confirmed", HTML: body}, nil
}

func statusChangedMessage(e sharedDomain.OrderStatusChangedEvent) (Message, error) {
	body, err := render(statusChangedTmpl, e)
	if err != nil {
		return Message{}, err
	}
	return Message{To: e.Email, Subject: "Your Electro Shop order was updated", HTML: body}, nil
}

func welcomeMessage(e sharedDomain.UserRegisteredEvent) (Message, error) {
	body, err := render(welcomeTmpl, e)
	if err != nil {
		return Message{}, err
	}
	return Message{To: e.Email, Subject: "Welcome to Electro Shop", HTML: body}, nil
}
