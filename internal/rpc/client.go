package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/avickers/tempo/internal/debug"
	"github.com/avickers/tempo/internal/lockfile"
	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/types"
)

// DefaultTimeout bounds a single request round trip.
const DefaultTimeout = 5 * time.Second

// Client speaks the line protocol over a single unix socket connection.
// Calls are serialized; the daemon answers in order.
type Client struct {
	socketPath string
	timeout    time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// TryConnect probes for a live daemon: the lock file must be held and the
// daemon must answer a health check. Returns ErrDaemonUnavailable when
// either probe fails, which callers treat as "use direct storage".
func TryConnect(socketPath, lockPath string) (*Client, error) {
	if !lockfile.Held(lockPath) {
		return nil, fmt.Errorf("%w: no lock holder", ErrDaemonUnavailable)
	}
	c, err := Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	if _, err := c.Health(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrDaemonUnavailable, err)
	}
	return c, nil
}

// Dial connects to the daemon socket without probing.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{
		socketPath: socketPath,
		timeout:    DefaultTimeout,
		conn:       conn,
		reader:     bufio.NewReader(conn),
	}, nil
}

// SetTimeout overrides the per-request deadline.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Execute sends one request and decodes the raw response. Connection-level
// failures come back as *TransportError; callers switch transports on those
// but surface daemon-reported errors as is.
//
// The line protocol has no request ids, so a half-finished exchange (say a
// deadline firing mid-read) would pair the next request with the stale
// response still in flight. Any transport failure therefore drops the
// connection; later calls fail fast instead of desynchronizing.
func (c *Client) Execute(op string, args interface{}) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, &TransportError{Op: op, Err: net.ErrClosed}
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshaling args: %w", err)
	}
	reqJSON, err := json.Marshal(Request{
		Operation:     op,
		Args:          argsJSON,
		ClientVersion: ProtocolVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, c.dropConn(op, err)
		}
	}

	if _, err := c.conn.Write(append(reqJSON, '\n')); err != nil {
		return nil, c.dropConn(op, err)
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, c.dropConn(op, err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, c.dropConn(op, err)
	}
	return &resp, nil
}

// dropConn closes and forgets the connection. Caller holds c.mu.
func (c *Client) dropConn(op string, err error) *TransportError {
	_ = c.conn.Close()
	c.conn = nil
	c.reader = nil
	return &TransportError{Op: op, Err: err}
}

// call executes op and decodes Data into result (when non-nil), mapping
// wire error codes back onto the storage sentinels.
func (c *Client) call(op string, args, result interface{}) error {
	resp, err := c.Execute(op, args)
	if err != nil {
		return err
	}
	if !resp.Success {
		return errorFor(resp.Code, resp.Error)
	}
	if result == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, result); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

// Ping verifies the daemon answers.
func (c *Client) Ping() error {
	return c.call(OpPing, nil, nil)
}

// Health fetches the daemon's health payload.
func (c *Client) Health() (*HealthResult, error) {
	var h HealthResult
	if err := c.call(OpHealth, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Shutdown asks the daemon to stop.
func (c *Client) Shutdown() error {
	return c.call(OpShutdown, nil, nil)
}

func (c *Client) GetActivities(includeDeleted bool) ([]*types.Activity, error) {
	var acts []*types.Activity
	err := c.call(OpGetActivities, GetActivitiesArgs{IncludeDeleted: includeDeleted}, &acts)
	return acts, err
}

func (c *Client) GetActivityByName(name string, categoryID int64, resurrect bool) (*types.Activity, error) {
	var a types.Activity
	err := c.call(OpGetActivityByName, GetActivityByNameArgs{
		Name: name, CategoryID: categoryID, Resurrect: resurrect,
	}, &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) AddActivity(name string, categoryID int64) (*types.Activity, error) {
	var a types.Activity
	if err := c.call(OpAddActivity, AddActivityArgs{Name: name, CategoryID: categoryID}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) UpdateActivity(id int64, name string, categoryID int64) error {
	return c.call(OpUpdateActivity, UpdateActivityArgs{ID: id, Name: name, CategoryID: categoryID}, nil)
}

func (c *Client) RemoveActivity(id int64) error {
	return c.call(OpRemoveActivity, IDArgs{ID: id}, nil)
}

func (c *Client) ChangeCategory(id, categoryID int64) error {
	return c.call(OpChangeCategory, ChangeCategoryArgs{ID: id, CategoryID: categoryID}, nil)
}

func (c *Client) GetCategories() ([]*types.Category, error) {
	var cats []*types.Category
	err := c.call(OpGetCategories, nil, &cats)
	return cats, err
}

func (c *Client) GetCategoryID(name string) (int64, error) {
	var id int64
	err := c.call(OpGetCategoryID, NameArgs{Name: name}, &id)
	return id, err
}

func (c *Client) AddCategory(name string) (*types.Category, error) {
	var cat types.Category
	if err := c.call(OpAddCategory, NameArgs{Name: name}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) UpdateCategory(id int64, name string) error {
	return c.call(OpUpdateCategory, UpdateCategoryArgs{ID: id, Name: name}, nil)
}

func (c *Client) RemoveCategory(id int64) error {
	return c.call(OpRemoveCategory, IDArgs{ID: id}, nil)
}

func (c *Client) GetFact(id int64) (*types.Fact, error) {
	var f types.Fact
	if err := c.call(OpGetFact, IDArgs{ID: id}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) GetFacts(rng types.Range) ([]*types.Fact, error) {
	var facts []*types.Fact
	err := c.call(OpGetFacts, GetFactsArgs{Start: rng.Start, End: rng.End}, &facts)
	return facts, err
}

func (c *Client) GetOpenFact() (*types.Fact, error) {
	var f *types.Fact
	if err := c.call(OpGetOpenFact, nil, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) AddFact(nf types.NewFact) (*types.Fact, error) {
	var f types.Fact
	if err := c.call(OpAddFact, nf, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) UpdateFact(id int64, nf types.NewFact) (*types.Fact, error) {
	var f types.Fact
	if err := c.call(OpUpdateFact, UpdateFactArgs{ID: id, Fact: nf}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) RemoveFact(id int64) (bool, error) {
	var res RemoveFactResult
	if err := c.call(OpRemoveFact, IDArgs{ID: id}, &res); err != nil {
		return false, err
	}
	return res.Removed, nil
}

func (c *Client) StopTracking(end time.Time) (*types.Fact, error) {
	var f *types.Fact
	if err := c.call(OpStopTracking, StopTrackingArgs{End: end}, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) StopOrRestartTracking(now time.Time) (*types.Fact, bool, error) {
	var res StopOrRestartResult
	if err := c.call(OpStopOrRestart, StopOrRestartArgs{Now: now}, &res); err != nil {
		return nil, false, err
	}
	return res.Fact, res.Stopped, nil
}

func (c *Client) Toggle(now time.Time) (*types.Fact, error) {
	var f *types.Fact
	if err := c.call(OpToggle, ToggleArgs{Now: now}, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) GetTags(autocompleteOnly bool) ([]*types.Tag, error) {
	var tags []*types.Tag
	err := c.call(OpGetTags, GetTagsArgs{AutocompleteOnly: autocompleteOnly}, &tags)
	return tags, err
}

func (c *Client) GetTagIDs(names []string) ([]*types.Tag, bool, error) {
	var res GetTagIDsResult
	if err := c.call(OpGetTagIDs, TagNamesArgs{Names: names}, &res); err != nil {
		return nil, false, err
	}
	return res.Tags, res.Mutated, nil
}

func (c *Client) UpdateAutocompleteTags(names []string) error {
	return c.call(OpUpdateAutocompleteTags, TagNamesArgs{Names: names}, nil)
}

// WatchEvents opens a dedicated connection and streams change events until
// ctx is cancelled or the daemon goes away. The returned channel is closed
// on stream end; consumers treat closure as a transport loss.
func (c *Client) WatchEvents(ctx context.Context) (<-chan notify.Event, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, DefaultTimeout)
	if err != nil {
		return nil, &TransportError{Op: OpWatchEvents, Err: err}
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(Request{Operation: OpWatchEvents, ClientVersion: ProtocolVersion}); err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: OpWatchEvents, Err: err}
	}

	reader := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	ackLine, err := reader.ReadBytes('\n')
	if err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: OpWatchEvents, Err: err}
	}
	var ack Response
	if err := json.Unmarshal(ackLine, &ack); err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: OpWatchEvents, Err: err}
	}
	if !ack.Success {
		_ = conn.Close()
		return nil, errorFor(ack.Code, ack.Error)
	}
	_ = conn.SetReadDeadline(time.Time{})

	events := make(chan notify.Event, watcherBufferSize)
	go func() {
		defer close(events)
		defer conn.Close()
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				debug.Logf("rpc: event stream closed: %v", err)
				return
			}
			var ev notify.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				debug.Logf("rpc: malformed event: %v", err)
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
