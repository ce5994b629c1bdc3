package recipients

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/mailbox"
)

const getItemRequest = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
  xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Header><t:RequestServerVersion Version="Exchange2013" /></soap:Header>
  <soap:Body>
    <m:GetItem>
      <m:ItemShape>
        <t:BaseShape>IdOnly</t:BaseShape>
        <t:AdditionalProperties>
          <t:FieldURI FieldURI="message:ToRecipients" />
          <t:FieldURI FieldURI="message:CcRecipients" />
          <t:FieldURI FieldURI="message:BccRecipients" />
        </t:AdditionalProperties>
      </m:ItemShape>
      <m:ItemIds><t:ItemId Id="%s" /></m:ItemIds>
    </m:GetItem>
  </soap:Body>
</soap:Envelope>`

type ewsMailbox struct {
	EmailAddress string `xml:"EmailAddress"`
}

type ewsEnvelope struct {
	Messages []struct {
		ResponseClass string `xml:"ResponseClass,attr"`
		MessageText   string `xml:"MessageText"`
		Item          struct {
			To  []ewsMailbox `xml:"ToRecipients>Mailbox"`
			Cc  []ewsMailbox `xml:"CcRecipients>Mailbox"`
			Bcc []ewsMailbox `xml:"BccRecipients>Mailbox"`
		} `xml:"Items>Message"`
	} `xml:"Body>GetItemResponse>ResponseMessages>GetItemResponseMessage"`
}

// EWS reads recipients with an EWS GetItem call. It needs a saved item.
type EWS struct{}

func (EWS) Name() string {
	return "ews"
}

func (EWS) Read(ctx context.Context, item mailbox.Item) (Set, error) {
	id, err := item.ItemID(ctx)
	if err != nil || id == "" {
		return Set{}, noItemID("recipients.EWS", err)
	}

	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(id)); err != nil {
		return Set{}, fmt.Errorf("recipients.EWS: %w", err)
	}
	resp, err := item.EWSRequest(ctx, fmt.Sprintf(getItemRequest, escaped.String()))
	if err != nil {
		return Set{}, fmt.Errorf("recipients.EWS request: %w", err)
	}
	return parseGetItem(resp)
}

func noItemID(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, interrors.ErrNoItemID, err)
	}
	return fmt.Errorf("%s: %w", op, interrors.ErrNoItemID)
}

func parseGetItem(resp string) (Set, error) {
	var env ewsEnvelope
	if err := xml.Unmarshal([]byte(resp), &env); err != nil {
		return Set{}, fmt.Errorf("recipients.EWS parse: %w", err)
	}
	if len(env.Messages) == 0 {
		return Set{}, fmt.Errorf("recipients.EWS: no GetItemResponseMessage")
	}
	m := env.Messages[0]
	if m.ResponseClass != "" && m.ResponseClass != "Success" {
		return Set{}, fmt.Errorf("recipients.EWS: %s: %s", m.ResponseClass, m.MessageText)
	}
	return Set{
		To:  ewsAddresses(m.Item.To),
		Cc:  ewsAddresses(m.Item.Cc),
		Bcc: ewsAddresses(m.Item.Bcc),
	}, nil
}

func ewsAddresses(boxes []ewsMailbox) []string {
	out := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if a := strings.TrimSpace(b.EmailAddress); a != "" {
			out = append(out, a)
		}
	}
	return out
}
