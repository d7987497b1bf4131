package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avickers/tempo/internal/debug"
	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/types"
)

// watcherBufferSize bounds the per-subscriber event queue. A slow watcher
// loses events rather than stalling dispatch; it re-queries on reconnect.
const watcherBufferSize = 64

// Backend is the operation surface the server exposes. The direct client
// facade satisfies it, so daemon requests run through the same code path as
// in-process calls, events included.
type Backend interface {
	GetActivities(ctx context.Context, includeDeleted bool) ([]*types.Activity, error)
	GetActivityByName(ctx context.Context, name string, categoryID int64, resurrect bool) (*types.Activity, error)
	AddActivity(ctx context.Context, name string, categoryID int64) (*types.Activity, error)
	UpdateActivity(ctx context.Context, id int64, name string, categoryID int64) error
	RemoveActivity(ctx context.Context, id int64) error
	ChangeCategory(ctx context.Context, id, categoryID int64) error

	GetCategories(ctx context.Context) ([]*types.Category, error)
	GetCategoryID(ctx context.Context, name string) (int64, error)
	AddCategory(ctx context.Context, name string) (*types.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) error
	RemoveCategory(ctx context.Context, id int64) error

	GetFact(ctx context.Context, id int64) (*types.Fact, error)
	GetFacts(ctx context.Context, rng types.Range) ([]*types.Fact, error)
	GetOpenFact(ctx context.Context) (*types.Fact, error)
	AddFact(ctx context.Context, nf types.NewFact) (*types.Fact, error)
	UpdateFact(ctx context.Context, id int64, nf types.NewFact) (*types.Fact, error)
	RemoveFact(ctx context.Context, id int64) (bool, error)
	StopTracking(ctx context.Context, end time.Time) (*types.Fact, error)
	StopOrRestartTracking(ctx context.Context, now time.Time) (*types.Fact, bool, error)
	Toggle(ctx context.Context, now time.Time) (*types.Fact, error)

	GetTags(ctx context.Context, autocompleteOnly bool) ([]*types.Tag, error)
	GetTagIDs(ctx context.Context, names []string) ([]*types.Tag, bool, error)
	UpdateAutocompleteTags(ctx context.Context, names []string) error
}

// Server serves the line protocol on a unix socket, fanning storage change
// events out to watch_events subscribers.
type Server struct {
	backend  Backend
	notifier *notify.Notifier
	dbPath   string

	ln      net.Listener
	started time.Time

	watchersMu sync.RWMutex
	watchers   map[int64]chan notify.Event
	watcherSeq int64

	subs     []notify.Subscription
	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer wires a server to its backend. The notifier must be the one the
// backend publishes on.
func NewServer(backend Backend, notifier *notify.Notifier, dbPath string) *Server {
	return &Server{
		backend:  backend,
		notifier: notifier,
		dbPath:   dbPath,
		watchers: make(map[int64]chan notify.Event),
		shutdown: make(chan struct{}),
	}
}

// Listen binds the unix socket, removing a stale socket file first. The
// lock file, not the socket, is the single-daemon guard.
func (s *Server) Listen(socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("binding socket: %w", err)
	}
	s.ln = ln
	return nil
}

// Serve accepts connections until Stop is called or ctx is cancelled. Each
// event kind is relayed from the notifier into the watcher channels for the
// lifetime of the serve loop.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("server not listening")
	}
	s.started = time.Now()

	for _, kind := range []notify.Kind{
		notify.TagsChanged, notify.FactsChanged,
		notify.ActivitiesChanged, notify.ToggleCalled,
	} {
		s.subs = append(s.subs, s.notifier.Subscribe(kind, func(ev notify.Event) error {
			s.dispatchEvent(ev)
			return nil
		}))
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdown:
		}
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.drain()
				return ctx.Err()
			case <-s.shutdown:
				s.drain()
				return nil
			default:
				s.drain()
				return fmt.Errorf("accepting connection: %w", err)
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Stop initiates a graceful shutdown. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdown) })
}

func (s *Server) drain() {
	for _, sub := range s.subs {
		s.notifier.Unsubscribe(sub)
	}
	s.wg.Wait()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(Response{Error: "malformed request: " + err.Error(), Code: CodeInternal})
			return
		}
		debug.Logf("rpc: %s", req.Operation)

		if req.Operation == OpWatchEvents {
			s.serveWatch(conn, enc)
			return
		}

		resp := s.handle(ctx, req)
		if err := enc.Encode(resp); err != nil {
			debug.Logf("rpc: writing response: %v", err)
			return
		}
		if req.Operation == OpShutdown {
			s.Stop()
			return
		}
	}
}

// serveWatch acknowledges the subscription, then streams one JSON event per
// line until the connection drops or the server stops.
func (s *Server) serveWatch(conn net.Conn, enc *json.Encoder) {
	id, ch := s.registerWatcher()
	defer s.unregisterWatcher(id)

	if err := enc.Encode(Response{Success: true}); err != nil {
		return
	}

	// Detect the client going away so the watcher slot is reclaimed.
	connClosed := make(chan struct{})
	go func() {
		defer close(connClosed)
		_, _ = bufio.NewReader(conn).ReadByte()
	}()

	for {
		select {
		case ev := <-ch:
			if err := enc.Encode(ev); err != nil {
				return
			}
		case <-connClosed:
			return
		case <-s.shutdown:
			return
		}
	}
}

func (s *Server) registerWatcher() (int64, chan notify.Event) {
	id := atomic.AddInt64(&s.watcherSeq, 1)
	ch := make(chan notify.Event, watcherBufferSize)
	s.watchersMu.Lock()
	s.watchers[id] = ch
	s.watchersMu.Unlock()
	return id, ch
}

func (s *Server) unregisterWatcher(id int64) {
	s.watchersMu.Lock()
	delete(s.watchers, id)
	s.watchersMu.Unlock()
}

func (s *Server) dispatchEvent(ev notify.Event) {
	s.watchersMu.RLock()
	defer s.watchersMu.RUnlock()
	for id, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; it reconciles by re-querying.
			debug.Logf("rpc: watcher %d dropped %s", id, ev.Kind)
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	data, err := s.dispatch(ctx, req)
	if err != nil {
		return Response{Error: err.Error(), Code: codeFor(err)}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{Error: "encoding result: " + err.Error(), Code: CodeInternal}
	}
	return Response{Success: true, Data: raw}
}

func (s *Server) dispatch(ctx context.Context, req Request) (interface{}, error) {
	switch req.Operation {
	case OpPing:
		return "pong", nil
	case OpHealth:
		return HealthResult{
			Version:       ProtocolVersion,
			DBPath:        s.dbPath,
			PID:           os.Getpid(),
			UptimeSeconds: int64(time.Since(s.started).Seconds()),
		}, nil
	case OpShutdown:
		return nil, nil

	case OpGetActivities:
		var args GetActivitiesArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.GetActivities(ctx, args.IncludeDeleted)
	case OpGetActivityByName:
		var args GetActivityByNameArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.GetActivityByName(ctx, args.Name, args.CategoryID, args.Resurrect)
	case OpAddActivity:
		var args AddActivityArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.AddActivity(ctx, args.Name, args.CategoryID)
	case OpUpdateActivity:
		var args UpdateActivityArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, s.backend.UpdateActivity(ctx, args.ID, args.Name, args.CategoryID)
	case OpRemoveActivity:
		var args IDArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, s.backend.RemoveActivity(ctx, args.ID)
	case OpChangeCategory:
		var args ChangeCategoryArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, s.backend.ChangeCategory(ctx, args.ID, args.CategoryID)

	case OpGetCategories:
		return s.backend.GetCategories(ctx)
	case OpGetCategoryID:
		var args NameArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.GetCategoryID(ctx, args.Name)
	case OpAddCategory:
		var args NameArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.AddCategory(ctx, args.Name)
	case OpUpdateCategory:
		var args UpdateCategoryArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, s.backend.UpdateCategory(ctx, args.ID, args.Name)
	case OpRemoveCategory:
		var args IDArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, s.backend.RemoveCategory(ctx, args.ID)

	case OpGetFact:
		var args IDArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.GetFact(ctx, args.ID)
	case OpGetFacts:
		var args GetFactsArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.GetFacts(ctx, types.Range{Start: args.Start, End: args.End})
	case OpGetOpenFact:
		return s.backend.GetOpenFact(ctx)
	case OpAddFact:
		var args types.NewFact
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.AddFact(ctx, args)
	case OpUpdateFact:
		var args UpdateFactArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.UpdateFact(ctx, args.ID, args.Fact)
	case OpRemoveFact:
		var args IDArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		removed, err := s.backend.RemoveFact(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		return RemoveFactResult{Removed: removed}, nil
	case OpStopTracking:
		var args StopTrackingArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.StopTracking(ctx, args.End)
	case OpStopOrRestart:
		var args StopOrRestartArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		fact, stopped, err := s.backend.StopOrRestartTracking(ctx, args.Now)
		if err != nil {
			return nil, err
		}
		return StopOrRestartResult{Fact: fact, Stopped: stopped}, nil
	case OpToggle:
		var args ToggleArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.Toggle(ctx, args.Now)

	case OpGetTags:
		var args GetTagsArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return s.backend.GetTags(ctx, args.AutocompleteOnly)
	case OpGetTagIDs:
		var args TagNamesArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		tags, mutated, err := s.backend.GetTagIDs(ctx, args.Names)
		if err != nil {
			return nil, err
		}
		return GetTagIDsResult{Tags: tags, Mutated: mutated}, nil
	case OpUpdateAutocompleteTags:
		var args TagNamesArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, s.backend.UpdateAutocompleteTags(ctx, args.Names)

	default:
		return nil, fmt.Errorf("unknown operation %q", req.Operation)
	}
}

func decodeArgs(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decoding args: %w", err)
	}
	return nil
}
