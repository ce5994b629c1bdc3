package mailbox

import (
	"context"
	"fmt"
)

// Properties is the loaded custom property bag of one compose item. Values
// are written as strings.
type Properties struct {
	raw RawCustomProperties
}

func (p *Properties) Get(name string) string {
	switch v := p.raw.Get(name).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (p *Properties) Set(name, value string) {
	p.raw.Set(name, value)
}

func (p *Properties) Save(ctx context.Context) error {
	_, err := Await(ctx, p.raw.SaveAsync)
	if err != nil {
		return fmt.Errorf("mailbox.Properties.Save: %w", err)
	}
	return nil
}
