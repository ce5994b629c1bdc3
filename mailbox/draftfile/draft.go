// Package draftfile is a compose item backed by a JSON file, used by the CLI
// to run the add-in flows outside a mail host. Custom properties are kept in
// the file so send state survives between runs.
package draftfile

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/mlredact-addin/mailbox"
)

var _ mailbox.RawItem = (*File)(nil)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Draft is the on-disk layout.
type Draft struct {
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	To         []string          `json:"to,omitempty"`
	Cc         []string          `json:"cc,omitempty"`
	Bcc        []string          `json:"bcc,omitempty"`
	Sender     string            `json:"sender,omitempty"`
	ItemID     string            `json:"itemId,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// File is a Draft loaded from path. Every successful set is written back.
type File struct {
	path string

	lock     sync.Mutex
	draft    Draft
	handlers map[mailbox.EventType][]func()
}

func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("draftfile.Open: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("draftfile.Open %s: %w", path, err)
	}
	if d.Properties == nil {
		d.Properties = make(map[string]string)
	}
	return &File{path: path, draft: d, handlers: make(map[mailbox.EventType][]func())}, nil
}

// Draft returns a copy of the current contents.
func (f *File) Draft() Draft {
	f.lock.Lock()
	defer f.lock.Unlock()
	d := f.draft
	d.Properties = make(map[string]string, len(f.draft.Properties))
	for k, v := range f.draft.Properties {
		d.Properties[k] = v
	}
	return d
}

func (f *File) write() error {
	data, err := json.MarshalIndent(f.draft, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, append(data, '\n'), 0o600)
}

func (f *File) GetSubjectAsync(cb func(mailbox.AsyncResult[string])) {
	f.lock.Lock()
	v := f.draft.Subject
	f.lock.Unlock()
	cb(mailbox.Ok(v))
}

func (f *File) SetSubjectAsync(subject string, cb func(mailbox.AsyncResult[struct{}])) {
	f.lock.Lock()
	f.draft.Subject = subject
	err := f.write()
	f.lock.Unlock()
	cb(result(err))
}

func (f *File) GetBodyAsync(coercion mailbox.CoercionType, cb func(mailbox.AsyncResult[string])) {
	f.lock.Lock()
	v := f.draft.Body
	f.lock.Unlock()
	if coercion == mailbox.CoercionText {
		v = toText(v)
	}
	cb(mailbox.Ok(v))
}

func (f *File) SetBodyAsync(body string, _ mailbox.CoercionType, cb func(mailbox.AsyncResult[struct{}])) {
	f.lock.Lock()
	f.draft.Body = body
	err := f.write()
	f.lock.Unlock()
	cb(result(err))
}

func (f *File) GetRecipientsAsync(field mailbox.RecipientField, cb func(mailbox.AsyncResult[[]any])) {
	f.lock.Lock()
	var src []string
	switch field {
	case mailbox.FieldTo:
		src = f.draft.To
	case mailbox.FieldCc:
		src = f.draft.Cc
	case mailbox.FieldBcc:
		src = f.draft.Bcc
	}
	values := make([]any, 0, len(src))
	for _, s := range src {
		values = append(values, s)
	}
	f.lock.Unlock()
	cb(mailbox.Ok(values))
}

func (f *File) LoadCustomPropertiesAsync(cb func(mailbox.AsyncResult[mailbox.RawCustomProperties])) {
	cb(mailbox.Ok[mailbox.RawCustomProperties](&properties{file: f}))
}

// ReplaceNotificationAsync logs the notification; there is no info bar.
func (f *File) ReplaceNotificationAsync(key string, n mailbox.Notification, cb func(mailbox.AsyncResult[struct{}])) {
	log.Info().Str("key", key).Str("type", string(n.Type)).Msg(n.Message)
	cb(mailbox.Ok(struct{}{}))
}

func (f *File) AddHandlerAsync(event mailbox.EventType, handler func(), cb func(mailbox.AsyncResult[struct{}])) {
	f.lock.Lock()
	f.handlers[event] = append(f.handlers[event], handler)
	f.lock.Unlock()
	cb(mailbox.Ok(struct{}{}))
}

func (f *File) GetItemIDAsync(cb func(mailbox.AsyncResult[string])) {
	f.lock.Lock()
	id := f.draft.ItemID
	f.lock.Unlock()
	if id == "" {
		cb(mailbox.Fail[string](9041, "draft has no item id"))
		return
	}
	cb(mailbox.Ok(id))
}

func (f *File) MakeEWSRequestAsync(_ string, cb func(mailbox.AsyncResult[string])) {
	cb(mailbox.Fail[string](5000, "EWS not available for draft files"))
}

func (f *File) GetCallbackTokenAsync(cb func(mailbox.AsyncResult[string])) {
	cb(mailbox.Fail[string](5000, "callback tokens not available for draft files"))
}

func (f *File) RestURL() string {
	return ""
}

func (f *File) UserEmailAddress() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.draft.Sender
}

func result(err error) mailbox.AsyncResult[struct{}] {
	if err != nil {
		return mailbox.AsyncResult[struct{}]{Status: mailbox.Failed, Error: &mailbox.HostError{Code: 5000, Message: err.Error()}}
	}
	return mailbox.Ok(struct{}{})
}

func toText(body string) string {
	text := html.UnescapeString(tagPattern.ReplaceAllString(body, " "))
	return strings.Join(strings.Fields(text), " ")
}

// properties edits a pending copy; SaveAsync commits it to the file.
type properties struct {
	file    *File
	pending map[string]string
	removed map[string]bool
}

func (p *properties) Get(name string) any {
	if v, ok := p.pending[name]; ok {
		return v
	}
	if p.removed[name] {
		return nil
	}
	p.file.lock.Lock()
	defer p.file.lock.Unlock()
	v, ok := p.file.draft.Properties[name]
	if !ok {
		return nil
	}
	return v
}

func (p *properties) Set(name string, value any) {
	if p.pending == nil {
		p.pending = make(map[string]string)
	}
	p.pending[name] = fmt.Sprint(value)
	delete(p.removed, name)
}

func (p *properties) Remove(name string) {
	if p.removed == nil {
		p.removed = make(map[string]bool)
	}
	p.removed[name] = true
	delete(p.pending, name)
}

func (p *properties) SaveAsync(cb func(mailbox.AsyncResult[struct{}])) {
	p.file.lock.Lock()
	for k, v := range p.pending {
		p.file.draft.Properties[k] = v
	}
	for k := range p.removed {
		delete(p.file.draft.Properties, k)
	}
	err := p.file.write()
	p.file.lock.Unlock()
	if err == nil {
		p.pending, p.removed = nil, nil
	}
	cb(result(err))
}
