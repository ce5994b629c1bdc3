// Package redaction is the client for the ML-Redact processing endpoint.
package redaction

// DefaultTenantID is sent when the caller has no tenant of its own.
const DefaultTenantID = "T3"

type TriggerType string

const (
	TriggerOnSend TriggerType = "onSend"
	TriggerManual TriggerType = "manual"
)

type Action string

const (
	ActionProofread Action = "Proofread"
	ActionRedact    Action = "Redact"
)

type Method string

const (
	MethodNone        Method = ""
	MethodBlackout    Method = "Blackout"
	MethodRedacted    Method = "<REDACTED>"
	MethodPartialMask Method = "Partial mask"
)

// Valid reports whether m is one of the methods the service accepts.
func (m Method) Valid() bool {
	switch m {
	case MethodNone, MethodBlackout, MethodRedacted, MethodPartialMask:
		return true
	}
	return false
}

type Recipients struct {
	To  []string `json:"to"`
	Cc  []string `json:"cc"`
	Bcc []string `json:"bcc"`
}

type Request struct {
	MessageID         string      `json:"messageId"`
	TenantID          string      `json:"tenantId"`
	UTCTimestamp      string      `json:"utcTimestamp"`
	TriggerType       TriggerType `json:"triggerType"`
	Subject           string      `json:"subject"`
	Body              string      `json:"body"`
	ActionsRequested  []Action    `json:"actionsRequested"`
	RedactionMethod   Method      `json:"redactionMethod"`
	UserContext       string      `json:"userContext"`
	MessageRecipients Recipients  `json:"messageRecipients"`
	MessageSender     string      `json:"messageSender"`
}

type Response struct {
	MessageID      string `json:"MessageId"`
	TenantID       string `json:"TenantId"`
	UpdatedSubject string `json:"UpdatedSubject"`
	UpdatedBody    string `json:"UpdatedBody"`
	ReqConfirm     bool   `json:"ReqConfirm"`
}
