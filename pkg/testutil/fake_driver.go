package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/ajitpratap0/stagecopy/pkg/config"
	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/warehouse"
)

// FakeResult is a scripted result set.
type FakeResult struct {
	Columns []string
	Rows    []warehouse.Row
}

type rule struct {
	match  string
	result FakeResult
	err    error
}

// FakeDriver is an in-memory warehouse.Driver that records every statement.
// Responses and failures are matched by substring in registration order.
type FakeDriver struct {
	mu         sync.Mutex
	name       string
	statements []string
	rules      []rule
	connects   int
	closes     int

	// ConnectErr makes Connect fail.
	ConnectErr error
	// OnExecute runs for every statement before a response is chosen; a
	// non-nil error fails the statement.
	OnExecute func(ctx context.Context, query string) error
}

// NewFakeDriver returns a FakeDriver reporting name.
func NewFakeDriver(name string) *FakeDriver {
	return &FakeDriver{name: name}
}

// Respond answers statements containing match with res.
func (d *FakeDriver) Respond(match string, res FakeResult) *FakeDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules = append(d.rules, rule{match: match, result: res})
	return d
}

// FailOn fails statements containing match with err.
func (d *FakeDriver) FailOn(match string, err error) *FakeDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules = append(d.rules, rule{match: match, err: err})
	return d
}

// Statements returns every executed statement in order.
func (d *FakeDriver) Statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.statements...)
}

// Executed reports whether a statement containing match was run.
func (d *FakeDriver) Executed(match string) bool {
	for _, s := range d.Statements() {
		if strings.Contains(s, match) {
			return true
		}
	}
	return false
}

// Connects returns the number of successful connects.
func (d *FakeDriver) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// Closes returns the number of closed connections.
func (d *FakeDriver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Name implements warehouse.Driver.
func (d *FakeDriver) Name() string { return d.name }

// Connect implements warehouse.Driver.
func (d *FakeDriver) Connect(ctx context.Context, _ config.Connection) (warehouse.Connection, error) {
	if d.ConnectErr != nil {
		return nil, errors.Wrap(d.ConnectErr, errors.ErrorTypeConnection, "failed to connect")
	}
	d.mu.Lock()
	d.connects++
	d.mu.Unlock()
	return &fakeConnection{driver: d}, nil
}

func (d *FakeDriver) execute(ctx context.Context, query string) (FakeResult, error) {
	d.mu.Lock()
	d.statements = append(d.statements, query)
	hook := d.OnExecute
	rules := append([]rule(nil), d.rules...)
	d.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, query); err != nil {
			return FakeResult{}, errors.Wrap(err, errors.ErrorTypeQuery, "statement execution failed")
		}
	}
	for _, r := range rules {
		if !strings.Contains(query, r.match) {
			continue
		}
		if r.err != nil {
			return FakeResult{}, errors.Wrap(r.err, errors.ErrorTypeQuery, "statement execution failed")
		}
		return r.result, nil
	}
	return FakeResult{}, nil
}

type fakeConnection struct {
	driver *FakeDriver
	once   sync.Once
}

func (c *fakeConnection) Cursor() warehouse.Cursor {
	return &fakeCursor{driver: c.driver}
}

func (c *fakeConnection) Close() error {
	c.once.Do(func() {
		c.driver.mu.Lock()
		c.driver.closes++
		c.driver.mu.Unlock()
	})
	return nil
}

type fakeCursor struct {
	driver  *FakeDriver
	columns []warehouse.Column
	rows    []warehouse.Row
	active  bool
}

func (c *fakeCursor) Execute(ctx context.Context, query string) error {
	c.columns, c.rows, c.active = nil, nil, false
	res, err := c.driver.execute(ctx, query)
	if err != nil {
		return err
	}
	for _, name := range res.Columns {
		c.columns = append(c.columns, warehouse.Column{Name: name})
	}
	c.rows = append([]warehouse.Row(nil), res.Rows...)
	c.active = true
	return nil
}

func (c *fakeCursor) FetchMany(n int) ([]warehouse.Row, error) {
	if !c.active {
		return nil, errors.New(errors.ErrorTypeQuery, "no result set to fetch from")
	}
	if n < 0 || n > len(c.rows) {
		n = len(c.rows)
	}
	out := c.rows[:n]
	c.rows = c.rows[n:]
	return out, nil
}

func (c *fakeCursor) FetchAll() ([]warehouse.Row, error) { return c.FetchMany(-1) }

func (c *fakeCursor) Description() []warehouse.Column { return c.columns }

func (c *fakeCursor) Close() error {
	c.active = false
	return nil
}
