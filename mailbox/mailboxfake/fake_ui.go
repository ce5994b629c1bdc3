package mailboxfake

import (
	"sync"

	"github.com/jrsteele09/mlredact-addin/mailbox"
)

var _ mailbox.RawUI = (*FakeUI)(nil)
var _ mailbox.RawDialog = (*FakeDialog)(nil)

// FakeUI opens FakeDialogs. OnOpen runs on its own goroutine after the dialog
// is handed to the opener, standing in for the dialog page.
type FakeUI struct {
	lock    sync.Mutex
	opens   []string
	Errors  map[string]int
	OnOpen  func(url string, d *FakeDialog)
	dialogs []*FakeDialog
}

func NewFakeUI() *FakeUI {
	return &FakeUI{Errors: make(map[string]int)}
}

func (u *FakeUI) DisplayDialogAsync(url string, _ mailbox.DialogOptions, cb func(mailbox.AsyncResult[mailbox.RawDialog])) {
	u.lock.Lock()
	u.opens = append(u.opens, url)
	code, fail := u.Errors[url]
	onOpen := u.OnOpen
	var d *FakeDialog
	if !fail {
		d = &FakeDialog{ready: make(chan struct{})}
		u.dialogs = append(u.dialogs, d)
	}
	u.lock.Unlock()

	if fail {
		go cb(mailbox.Fail[mailbox.RawDialog](code, "dialog failed"))
		return
	}
	go func() {
		cb(mailbox.Ok[mailbox.RawDialog](d))
		if onOpen != nil {
			<-d.ready
			onOpen(url, d)
		}
	}()
}

func (u *FakeUI) Opens() []string {
	u.lock.Lock()
	defer u.lock.Unlock()
	return append([]string(nil), u.opens...)
}

func (u *FakeUI) Dialogs() []*FakeDialog {
	u.lock.Lock()
	defer u.lock.Unlock()
	return append([]*FakeDialog(nil), u.dialogs...)
}

// FakeDialog records what the opener sent and lets tests act as the page.
type FakeDialog struct {
	lock      sync.Mutex
	onMessage func(string)
	onEvent   func(int)
	toChild   []string
	closed    bool
	ready     chan struct{}
	readyOnce sync.Once
}

func (d *FakeDialog) AddMessageHandler(handler func(message string)) {
	d.lock.Lock()
	d.onMessage = handler
	ready := d.onEvent != nil
	d.lock.Unlock()
	if ready {
		d.readyOnce.Do(func() { close(d.ready) })
	}
}

func (d *FakeDialog) AddEventHandler(handler func(code int)) {
	d.lock.Lock()
	d.onEvent = handler
	ready := d.onMessage != nil
	d.lock.Unlock()
	if ready {
		d.readyOnce.Do(func() { close(d.ready) })
	}
}

func (d *FakeDialog) MessageChild(message string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.toChild = append(d.toChild, message)
	return nil
}

func (d *FakeDialog) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed = true
	return nil
}

// MessageParent delivers a message from the page to the opener.
func (d *FakeDialog) MessageParent(message string) {
	d.lock.Lock()
	h := d.onMessage
	d.lock.Unlock()
	if h != nil {
		h(message)
	}
}

// RaiseEvent delivers a host dialog event (for example CodeDialogClosed).
func (d *FakeDialog) RaiseEvent(code int) {
	d.lock.Lock()
	h := d.onEvent
	d.lock.Unlock()
	if h != nil {
		h(code)
	}
}

func (d *FakeDialog) SentToChild() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.toChild...)
}

func (d *FakeDialog) Closed() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.closed
}
