package outlook

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
)

// pageIterator walks the delta pages one item at a time. It starts from the
// stored delta link when there is one, otherwise from the initial window.
type pageIterator struct {
	ctx     context.Context
	c       *Client
	initial string
	state   string

	next      string
	started   bool
	restarted bool
	items     []json.RawMessage
	pos       int
	seen      int
	done      bool
	deltaLink string
	err       error
}

func (p *pageIterator) Next() bool {
	for p.err == nil {
		if p.pos < len(p.items) {
			p.pos++
			p.seen++
			return true
		}
		if p.done {
			return false
		}
		p.fetch()
	}
	return false
}

func (p *pageIterator) fetch() {
	if !p.started {
		p.started = true
		p.next = p.initial
		if p.state != "" {
			p.next = p.state
		}
	}

	res, err := p.c.get(p.ctx, p.next)
	if err != nil {
		if p.state != "" && !p.restarted && isGone(err) {
			p.c.logger.InfoContext(p.ctx, "delta link expired, fetching the whole window")
			p.restarted = true
			p.next = p.initial
			return
		}
		p.err = err
		return
	}

	p.items, p.pos = res.Value, 0
	p.next = res.NextLink
	if p.next == "" {
		p.done = true
		p.deltaLink = res.DeltaLink
	}
}

func (p *pageIterator) Item() json.RawMessage {
	return p.items[p.pos-1]
}

func (p *pageIterator) DeltaLink() string {
	if p.err != nil || !p.done {
		return ""
	}
	return p.deltaLink
}

func (p *pageIterator) Total() int {
	total := p.seen + len(p.items) - p.pos
	if !p.done {
		total += pageSize
	}
	return total
}

func (p *pageIterator) Err() error {
	return p.err
}

func isGone(err error) bool {
	var gErr *Error
	return errors.As(err, &gErr) && gErr.StatusCode == http.StatusGone
}
