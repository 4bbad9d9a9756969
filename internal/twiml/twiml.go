// Package twiml builds the XML signaling markup returned to the telephony
// provider on webhook responses. Documents are rendered with encoding/xml so
// interpolated values (transfer numbers, spoken text) are always escaped.
package twiml

import (
	"encoding/xml"
	"fmt"
	"log/slog"
)

// Header is the XML declaration prepended to every rendered document.
const Header = `<?xml version="1.0" encoding="UTF-8"?>`

// apologyText is spoken to the caller when an internal error would otherwise
// drop the call. The webhook contract requires a well-formed 200 response in
// every error path.
const apologyText = "We are sorry, but we are unable to connect your call right now. Please try again later."

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

// Number is the dial target inside a Dial verb.
type Number struct {
	XMLName xml.Name `xml:"Number"`
	Value   string   `xml:",chardata"`
}

// Dial rings an external number. Action receives the dial outcome callback,
// Timeout bounds the ring duration in seconds, and AnswerOnBridge delays
// answering the inbound leg until the dialed party picks up.
type Dial struct {
	XMLName        xml.Name `xml:"Dial"`
	Action         string   `xml:"action,attr,omitempty"`
	Timeout        int      `xml:"timeout,attr,omitempty"`
	AnswerOnBridge bool     `xml:"answerOnBridge,attr"`
	Number         *Number  `xml:"Number,omitempty"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is the document root. Verbs are executed in field order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Say     *Say     `xml:",omitempty"`
	Dial    *Dial    `xml:",omitempty"`
	Hangup  *Hangup  `xml:",omitempty"`
}

// Render serializes the response with the XML declaration. Marshalling a
// Response cannot fail in practice; if it somehow does, the hard-coded
// apology document is returned so the caller still has well-formed XML.
func (r *Response) Render() string {
	out, err := xml.Marshal(r)
	if err != nil {
		slog.Error("twiml: marshal failed", "error", err)
		return fmt.Sprintf("%s<Response><Say>%s</Say><Hangup></Hangup></Response>", Header, apologyText)
	}
	return Header + string(out)
}

// Empty returns a rendered empty response, letting the provider end or
// continue the call as it sees fit.
func Empty() string {
	return (&Response{}).Render()
}

// HangupResponse returns a rendered response that ends the call.
func HangupResponse() string {
	return (&Response{Hangup: &Hangup{}}).Render()
}

// Apology returns a rendered response that speaks an apology and hangs up.
// Used on every internal error path so the caller never hears dead air.
func Apology() string {
	return SayHangup(apologyText)
}

// SayHangup returns a rendered response that speaks the given text and hangs up.
func SayHangup(text string) string {
	return (&Response{Say: &Say{Text: text}, Hangup: &Hangup{}}).Render()
}

// Transfer returns a rendered response that dials the transfer number with
// the given dial-outcome callback URL and ring timeout. answerOnBridge is
// always set so the caller keeps hearing ringing until the team answers.
func Transfer(number, actionURL string, timeoutSeconds int) string {
	return (&Response{
		Dial: &Dial{
			Action:         actionURL,
			Timeout:        timeoutSeconds,
			AnswerOnBridge: true,
			Number:         &Number{Value: number},
		},
	}).Render()
}
