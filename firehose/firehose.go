// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package firehose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/ipfs/go-cid"

	"github.com/tapestry-foundation/tapestry/api"
	"github.com/tapestry-foundation/tapestry/api/atproto"
	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/lib/data"
	"github.com/tapestry-foundation/tapestry/repo/car"
)

// ErrFutureCursor reports that the requested cursor is ahead of the
// stream. The caller's saved cursor is bogus (or the relay lost
// history going the other way); resume from live instead.
var ErrFutureCursor = errors.New("requested cursor is ahead of the stream")

// StreamError is an error frame received from the relay. The relay
// closes the connection after sending one.
type StreamError struct {
	Name    string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (e *StreamError) Error() string {
	if e.Message == "" {
		return "stream error: " + e.Name
	}
	return "stream error: " + e.Name + ": " + e.Message
}

// Unwrap maps well-known error frame names onto sentinel errors so
// callers can test with errors.Is.
func (e *StreamError) Unwrap() error {
	if e.Name == atproto.SubscribeReposErrorFutureCursor {
		return ErrFutureCursor
	}
	return nil
}

// Handlers receives stream messages. Nil entries skip that message
// type. Handlers run sequentially on the read loop goroutine; a
// returned error stops the subscription and is returned from
// Subscribe.
type Handlers struct {
	Commit   func(ctx context.Context, ev *CommitEvent) error
	Sync     func(ctx context.Context, ev *atproto.SubscribeReposSync) error
	Identity func(ctx context.Context, ev *atproto.SubscribeReposIdentity) error
	Account  func(ctx context.Context, ev *atproto.SubscribeReposAccount) error
	Info     func(ctx context.Context, ev *atproto.SubscribeReposInfo) error
}

// SubscribeConfig configures a subscribeRepos subscription.
type SubscribeConfig struct {
	// Host is the relay, either a bare hostname (dialed with wss://)
	// or a full ws:// or wss:// URL.
	Host string

	// Cursor is the sequence number to resume after. Nil tails the
	// live stream.
	Cursor *int64

	Handlers Handlers

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Subscribe consumes com.atproto.sync.subscribeRepos from a relay
// until ctx is canceled, a handler returns an error, or the relay
// sends an error frame. Transport failures redial with backoff,
// resuming after the last delivered sequence number.
func Subscribe(ctx context.Context, cfg SubscribeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("host", cfg.Host)

	cursor := cfg.Cursor
	backoff := time.Second
	for {
		delivered, err := readStream(ctx, cfg, &cursor, logger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isTransient(err) {
			return err
		}
		if delivered {
			backoff = time.Second
		}
		logger.Warn("stream disconnected, redialing",
			"error", err,
			"backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// isTransient reports whether err is a connection-level failure worth
// redialing, as opposed to a handler or protocol error that should
// stop the subscription.
func isTransient(err error) bool {
	var te transportError
	return errors.As(err, &te)
}

type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

// frameHeader precedes every payload on the wire. op 1 is a message
// (t names the payload type), op -1 is an error frame.
type frameHeader struct {
	Op   int64  `json:"op"`
	Type string `json:"t,omitempty"`
}

func subscribeURL(host string, cursor *int64) (string, error) {
	if !strings.Contains(host, "://") {
		host = "wss://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid host: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid host scheme %q", u.Scheme)
	}
	u.Path = "/xrpc/com.atproto.sync.subscribeRepos"
	if cursor != nil {
		u.RawQuery = url.Values{
			"cursor": []string{strconv.FormatInt(*cursor, 10)},
		}.Encode()
	}
	return u.String(), nil
}

// readStream runs one connection: dial, read frames, dispatch until
// something ends the stream. It reports whether any message was
// delivered, for backoff reset.
func readStream(ctx context.Context, cfg SubscribeConfig, cursor **int64, logger *slog.Logger) (bool, error) {
	addr, err := subscribeURL(cfg.Host, *cursor)
	if err != nil {
		return false, err
	}
	conn, br, _, err := ws.Dialer{}.Dial(ctx, addr)
	if err != nil {
		return false, transportError{fmt.Errorf("dial %s: %w", addr, err)}
	}
	defer conn.Close()

	// Close the connection when ctx is canceled so blocked reads
	// return.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Debug("stream connected", "url", addr)

	var source io.Reader = conn
	if br != nil {
		// The handshake read buffer may hold the first frames.
		source = br
	}
	controlHandler := wsutil.ControlFrameHandler(conn, ws.StateClientSide)
	reader := &wsutil.Reader{
		Source:         source,
		State:          ws.StateClientSide,
		OnIntermediate: controlHandler,
	}

	delivered := false
	var buf bytes.Buffer
	for {
		hdr, err := reader.NextFrame()
		if err != nil {
			return delivered, transportError{fmt.Errorf("read frame: %w", err)}
		}
		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, reader); err != nil {
				return delivered, transportError{fmt.Errorf("control frame: %w", err)}
			}
			continue
		}
		if hdr.OpCode != ws.OpBinary {
			if err := reader.Discard(); err != nil {
				return delivered, transportError{err}
			}
			continue
		}
		buf.Reset()
		if _, err := buf.ReadFrom(reader); err != nil {
			return delivered, transportError{fmt.Errorf("read frame body: %w", err)}
		}
		seq, err := dispatch(ctx, cfg.Handlers, buf.Bytes(), logger)
		if err != nil {
			return delivered, err
		}
		delivered = true
		if seq > 0 {
			s := seq
			*cursor = &s
		}
	}
}

// dispatch decodes one frame and delivers it. It returns the message
// sequence number, or 0 for unsequenced messages.
func dispatch(ctx context.Context, h Handlers, frame []byte, logger *slog.Logger) (int64, error) {
	var hdr frameHeader
	payload, err := codec.UnmarshalFirst(frame, &hdr)
	if err != nil {
		return 0, fmt.Errorf("decode frame header: %w", err)
	}
	if hdr.Op == -1 {
		se := new(StreamError)
		if err := codec.Unmarshal(payload, se); err != nil {
			return 0, fmt.Errorf("decode error frame: %w", err)
		}
		return 0, se
	}
	if hdr.Op != 1 {
		return 0, fmt.Errorf("unknown frame op %d", hdr.Op)
	}

	switch hdr.Type {
	case "#commit":
		ev := new(CommitEvent)
		if err := codec.Unmarshal(payload, &ev.SubscribeReposCommit); err != nil {
			return 0, fmt.Errorf("decode #commit: %w", err)
		}
		if h.Commit != nil {
			if err := h.Commit(ctx, ev); err != nil {
				return 0, err
			}
		}
		return ev.Seq, nil
	case "#sync":
		ev := new(atproto.SubscribeReposSync)
		if err := codec.Unmarshal(payload, ev); err != nil {
			return 0, fmt.Errorf("decode #sync: %w", err)
		}
		if h.Sync != nil {
			if err := h.Sync(ctx, ev); err != nil {
				return 0, err
			}
		}
		return ev.Seq, nil
	case "#identity":
		ev := new(atproto.SubscribeReposIdentity)
		if err := codec.Unmarshal(payload, ev); err != nil {
			return 0, fmt.Errorf("decode #identity: %w", err)
		}
		if h.Identity != nil {
			if err := h.Identity(ctx, ev); err != nil {
				return 0, err
			}
		}
		return ev.Seq, nil
	case "#account":
		ev := new(atproto.SubscribeReposAccount)
		if err := codec.Unmarshal(payload, ev); err != nil {
			return 0, fmt.Errorf("decode #account: %w", err)
		}
		if h.Account != nil {
			if err := h.Account(ctx, ev); err != nil {
				return 0, err
			}
		}
		return ev.Seq, nil
	case "#info":
		ev := new(atproto.SubscribeReposInfo)
		if err := codec.Unmarshal(payload, ev); err != nil {
			return 0, fmt.Errorf("decode #info: %w", err)
		}
		if h.Info != nil {
			if err := h.Info(ctx, ev); err != nil {
				return 0, err
			}
		}
		return 0, nil
	default:
		// Unknown message types are skipped so relays can extend the
		// stream.
		logger.Debug("skipping unknown stream message", "type", hdr.Type)
		return 0, nil
	}
}

// CommitEvent is a #commit stream message.
type CommitEvent struct {
	atproto.SubscribeReposCommit
}

// RecordOp is one repository write extracted from a commit event.
type RecordOp struct {
	// Action is "create", "update", or "delete".
	Action     string
	Collection string
	RKey       string
	// CID is the record CID, undefined for deletes.
	CID cid.Cid
	// Value is the decoded record body, nil for deletes.
	Value data.Value
	// Record is the typed record when the collection is registered,
	// nil otherwise. Value always carries the full body.
	Record api.Record
}

// Records decodes the event's CAR slice and resolves each op to its
// record body. Ops whose blocks were elided (tooBig events) come back
// with a nil Value.
func (e *CommitEvent) Records() ([]RecordOp, error) {
	var blocks map[cid.Cid][]byte
	if len(e.Blocks) > 0 {
		var err error
		_, blocks, err = car.ReadAll(bytes.NewReader(e.Blocks))
		if err != nil {
			return nil, fmt.Errorf("decode block slice: %w", err)
		}
	}
	ops := make([]RecordOp, 0, len(e.Ops))
	for _, raw := range e.Ops {
		collection, rkey, ok := strings.Cut(raw.Path, "/")
		if !ok {
			return nil, fmt.Errorf("malformed op path %q", raw.Path)
		}
		op := RecordOp{
			Action:     raw.Action,
			Collection: collection,
			RKey:       rkey,
		}
		if raw.Cid != nil {
			op.CID = raw.Cid.CID()
		}
		if raw.Action != "delete" && op.CID.Defined() {
			block, ok := blocks[op.CID]
			if ok {
				val, err := data.UnmarshalCBOR(block)
				if err != nil {
					return nil, fmt.Errorf("decode record %s: %w", raw.Path, err)
				}
				op.Value = val
				if encoded, err := data.MarshalJSON(val); err == nil {
					if rec, err := api.DecodeRecord(encoded); err == nil {
						op.Record = rec
					}
				}
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}
