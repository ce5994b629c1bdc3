package mailboxfake

import (
	"regexp"
	"strings"
	"sync"

	"github.com/jrsteele09/mlredact-addin/mailbox"
)

var _ mailbox.RawItem = (*FakeItem)(nil)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// RecipientsFunc scripts GetRecipientsAsync; call counts from 1 per field.
type RecipientsFunc func(field mailbox.RecipientField, call int) mailbox.AsyncResult[[]any]

// FakeItem is an in-memory compose item. Callbacks are delivered on a new
// goroutine like the real host does.
type FakeItem struct {
	lock sync.Mutex

	subject  string
	bodyHTML string
	bodyText string

	recipients     map[mailbox.RecipientField][]any
	RecipientsFunc RecipientsFunc
	recipientCalls map[mailbox.RecipientField]int

	props     *FakeProperties
	LoadErr   *mailbox.HostError
	handlers  map[mailbox.EventType][]func()
	notes     map[string]mailbox.Notification
	itemID    string
	ewsFunc   func(request string) mailbox.AsyncResult[string]
	callback  string
	restURL   string
	userEmail string

	subjectSets int
	bodySets    int
	BodyHTMLErr *mailbox.HostError
}

func NewFakeItem(subject, bodyHTML string) *FakeItem {
	return &FakeItem{
		subject:        subject,
		bodyHTML:       bodyHTML,
		bodyText:       htmlToText(bodyHTML),
		recipients:     make(map[mailbox.RecipientField][]any),
		recipientCalls: make(map[mailbox.RecipientField]int),
		props:          NewFakeProperties(),
		handlers:       make(map[mailbox.EventType][]func()),
		notes:          make(map[string]mailbox.Notification),
		userEmail:      "sender@example.com",
	}
}

func htmlToText(html string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(html, " "))
}

// SetRecipients replaces a field and fires RecipientsChanged.
func (f *FakeItem) SetRecipients(field mailbox.RecipientField, values ...any) {
	f.lock.Lock()
	f.recipients[field] = values
	f.lock.Unlock()
	f.Fire(mailbox.EventRecipientsChanged)
}

// SetRecipientsQuiet replaces a field without firing events.
func (f *FakeItem) SetRecipientsQuiet(field mailbox.RecipientField, values ...any) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.recipients[field] = values
}

func (f *FakeItem) SetItemID(id string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.itemID = id
}

func (f *FakeItem) SetCallbackToken(t string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.callback = t
}

func (f *FakeItem) SetRestURL(u string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.restURL = u
}

func (f *FakeItem) SetUserEmail(e string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.userEmail = e
}

func (f *FakeItem) SetEWS(fn func(request string) mailbox.AsyncResult[string]) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ewsFunc = fn
}

// EditSubject changes the subject as the user would and fires SubjectChanged.
func (f *FakeItem) EditSubject(subject string) {
	f.lock.Lock()
	f.subject = subject
	f.lock.Unlock()
	f.Fire(mailbox.EventSubjectChanged)
}

func (f *FakeItem) CurrentSubject() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.subject
}

func (f *FakeItem) CurrentBodyHTML() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.bodyHTML
}

func (f *FakeItem) SubjectSets() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.subjectSets
}

func (f *FakeItem) BodySets() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.bodySets
}

func (f *FakeItem) RecipientCalls(field mailbox.RecipientField) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.recipientCalls[field]
}

func (f *FakeItem) Props() *FakeProperties {
	return f.props
}

func (f *FakeItem) Notification(key string) (mailbox.Notification, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	n, ok := f.notes[key]
	return n, ok
}

func (f *FakeItem) HandlerCount(event mailbox.EventType) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.handlers[event])
}

// Fire runs the handlers registered for event synchronously.
func (f *FakeItem) Fire(event mailbox.EventType) {
	f.lock.Lock()
	handlers := append([]func(){}, f.handlers[event]...)
	f.lock.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (f *FakeItem) GetSubjectAsync(cb func(mailbox.AsyncResult[string])) {
	v := f.CurrentSubject()
	go cb(mailbox.Ok(v))
}

func (f *FakeItem) SetSubjectAsync(subject string, cb func(mailbox.AsyncResult[struct{}])) {
	f.lock.Lock()
	f.subject = subject
	f.subjectSets++
	f.lock.Unlock()
	go cb(mailbox.Ok(struct{}{}))
}

func (f *FakeItem) GetBodyAsync(coercion mailbox.CoercionType, cb func(mailbox.AsyncResult[string])) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if coercion == mailbox.CoercionHTML {
		if f.BodyHTMLErr != nil {
			err := f.BodyHTMLErr
			go cb(mailbox.AsyncResult[string]{Status: mailbox.Failed, Error: err})
			return
		}
		v := f.bodyHTML
		go cb(mailbox.Ok(v))
		return
	}
	v := f.bodyText
	go cb(mailbox.Ok(v))
}

func (f *FakeItem) SetBodyAsync(body string, coercion mailbox.CoercionType, cb func(mailbox.AsyncResult[struct{}])) {
	f.lock.Lock()
	if coercion == mailbox.CoercionHTML {
		f.bodyHTML = body
		f.bodyText = htmlToText(body)
	} else {
		f.bodyText = body
		f.bodyHTML = body
	}
	f.bodySets++
	f.lock.Unlock()
	go cb(mailbox.Ok(struct{}{}))
}

func (f *FakeItem) GetRecipientsAsync(field mailbox.RecipientField, cb func(mailbox.AsyncResult[[]any])) {
	f.lock.Lock()
	f.recipientCalls[field]++
	call := f.recipientCalls[field]
	script := f.RecipientsFunc
	values := append([]any(nil), f.recipients[field]...)
	f.lock.Unlock()

	if script != nil {
		r := script(field, call)
		go cb(r)
		return
	}
	go cb(mailbox.Ok(values))
}

func (f *FakeItem) LoadCustomPropertiesAsync(cb func(mailbox.AsyncResult[mailbox.RawCustomProperties])) {
	f.lock.Lock()
	loadErr := f.LoadErr
	f.lock.Unlock()
	if loadErr != nil {
		go cb(mailbox.AsyncResult[mailbox.RawCustomProperties]{Status: mailbox.Failed, Error: loadErr})
		return
	}
	go cb(mailbox.Ok[mailbox.RawCustomProperties](f.props))
}

func (f *FakeItem) ReplaceNotificationAsync(key string, n mailbox.Notification, cb func(mailbox.AsyncResult[struct{}])) {
	f.lock.Lock()
	f.notes[key] = n
	f.lock.Unlock()
	go cb(mailbox.Ok(struct{}{}))
}

func (f *FakeItem) AddHandlerAsync(event mailbox.EventType, handler func(), cb func(mailbox.AsyncResult[struct{}])) {
	f.lock.Lock()
	f.handlers[event] = append(f.handlers[event], handler)
	f.lock.Unlock()
	go cb(mailbox.Ok(struct{}{}))
}

func (f *FakeItem) GetItemIDAsync(cb func(mailbox.AsyncResult[string])) {
	f.lock.Lock()
	id := f.itemID
	f.lock.Unlock()
	if id == "" {
		go cb(mailbox.Fail[string](9041, "item not saved"))
		return
	}
	go cb(mailbox.Ok(id))
}

func (f *FakeItem) MakeEWSRequestAsync(request string, cb func(mailbox.AsyncResult[string])) {
	f.lock.Lock()
	fn := f.ewsFunc
	f.lock.Unlock()
	if fn == nil {
		go cb(mailbox.Fail[string](5000, "EWS not available"))
		return
	}
	r := fn(request)
	go cb(r)
}

func (f *FakeItem) GetCallbackTokenAsync(cb func(mailbox.AsyncResult[string])) {
	f.lock.Lock()
	t := f.callback
	f.lock.Unlock()
	if t == "" {
		go cb(mailbox.Fail[string](9017, "no callback token"))
		return
	}
	go cb(mailbox.Ok(t))
}

func (f *FakeItem) RestURL() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.restURL
}

func (f *FakeItem) UserEmailAddress() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.userEmail
}
