// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package firehose

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/klauspost/compress/zstd"

	"github.com/tapestry-foundation/tapestry/api"
)

// JetstreamEvent is one message from a Jetstream instance. Exactly
// one of Commit, Identity, and Account is set, matching Kind.
type JetstreamEvent struct {
	Did    string `json:"did"`
	TimeUS int64  `json:"time_us"`
	// Kind is "commit", "identity", or "account".
	Kind     string             `json:"kind"`
	Commit   *JetstreamCommit   `json:"commit,omitempty"`
	Identity *JetstreamIdentity `json:"identity,omitempty"`
	Account  *JetstreamAccount  `json:"account,omitempty"`
}

// JetstreamCommit is the commit payload of a Jetstream event. Unlike
// the relay stream there is no CAR slice; the record body arrives as
// plain JSON, unverified.
type JetstreamCommit struct {
	Rev string `json:"rev"`
	// Operation is "create", "update", or "delete".
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
	Cid        string          `json:"cid,omitempty"`
}

// DecodeRecord decodes the commit's record body into its registered
// record type.
func (c *JetstreamCommit) DecodeRecord() (api.Record, error) {
	if len(c.Record) == 0 {
		return nil, errors.New("commit carries no record")
	}
	return api.DecodeRecord(c.Record)
}

// JetstreamIdentity is the identity payload of a Jetstream event.
type JetstreamIdentity struct {
	Did    string  `json:"did"`
	Handle *string `json:"handle,omitempty"`
	Seq    int64   `json:"seq"`
	Time   string  `json:"time"`
}

// JetstreamAccount is the account payload of a Jetstream event.
type JetstreamAccount struct {
	Did    string  `json:"did"`
	Active bool    `json:"active"`
	Status *string `json:"status,omitempty"`
	Seq    int64   `json:"seq"`
	Time   string  `json:"time"`
}

// JetstreamConfig configures a Jetstream subscription.
type JetstreamConfig struct {
	// Host is the Jetstream instance, either a bare hostname (dialed
	// with wss://) or a full ws:// or wss:// URL.
	Host string

	// WantedCollections filters events server-side to these
	// collection NSIDs. Empty means all collections.
	WantedCollections []string

	// WantedDIDs filters events server-side to these repositories.
	// Empty means all repositories.
	WantedDIDs []string

	// Cursor is a unix microsecond timestamp to replay from. Zero
	// tails the live stream.
	Cursor int64

	// Compress requests zstd-compressed frames. Jetstream compresses
	// with a custom dictionary; Dictionary must hold it.
	Compress bool

	// Dictionary is the zstd dictionary Jetstream compresses with,
	// as distributed with the Jetstream server. Required when
	// Compress is set.
	Dictionary []byte

	// Handler receives events sequentially on the read loop
	// goroutine. A returned error stops the subscription.
	Handler func(ctx context.Context, ev *JetstreamEvent) error

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

func jetstreamURL(cfg JetstreamConfig, cursor int64) (string, error) {
	host := cfg.Host
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
	u.Path = "/subscribe"
	values := url.Values{}
	for _, c := range cfg.WantedCollections {
		values.Add("wantedCollections", c)
	}
	for _, d := range cfg.WantedDIDs {
		values.Add("wantedDids", d)
	}
	if cursor > 0 {
		values.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	if cfg.Compress {
		values.Set("compress", "true")
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// Jetstream consumes events from a Jetstream instance until ctx is
// canceled or the handler returns an error. Transport failures redial
// with backoff, resuming from the last delivered event's timestamp.
func Jetstream(ctx context.Context, cfg JetstreamConfig) error {
	if cfg.Handler == nil {
		return errors.New("no handler configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("host", cfg.Host)

	var decoder *zstd.Decoder
	if cfg.Compress {
		if len(cfg.Dictionary) == 0 {
			return errors.New("compressed mode requires the Jetstream zstd dictionary")
		}
		var err error
		decoder, err = zstd.NewReader(nil,
			zstd.WithDecoderDicts(cfg.Dictionary),
			zstd.WithDecoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
	}

	cursor := cfg.Cursor
	backoff := time.Second
	for {
		delivered, err := readJetstream(ctx, cfg, decoder, &cursor, logger)
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

func readJetstream(ctx context.Context, cfg JetstreamConfig, decoder *zstd.Decoder, cursor *int64, logger *slog.Logger) (bool, error) {
	addr, err := jetstreamURL(cfg, *cursor)
	if err != nil {
		return false, err
	}
	conn, br, _, err := ws.Dialer{}.Dial(ctx, addr)
	if err != nil {
		return false, transportError{fmt.Errorf("dial %s: %w", addr, err)}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Debug("stream connected", "url", addr)

	var source io.Reader = conn
	if br != nil {
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
		if hdr.OpCode != ws.OpText && hdr.OpCode != ws.OpBinary {
			if err := reader.Discard(); err != nil {
				return delivered, transportError{err}
			}
			continue
		}
		buf.Reset()
		if _, err := buf.ReadFrom(reader); err != nil {
			return delivered, transportError{fmt.Errorf("read frame body: %w", err)}
		}
		payload := buf.Bytes()
		// Compressed mode delivers binary zstd frames; the server
		// still sends text for anything it chose not to compress.
		if decoder != nil && hdr.OpCode == ws.OpBinary {
			payload, err = decoder.DecodeAll(payload, nil)
			if err != nil {
				return delivered, fmt.Errorf("decompress frame: %w", err)
			}
		}
		ev := new(JetstreamEvent)
		if err := json.Unmarshal(payload, ev); err != nil {
			return delivered, fmt.Errorf("decode event: %w", err)
		}
		if err := cfg.Handler(ctx, ev); err != nil {
			return delivered, err
		}
		delivered = true
		if ev.TimeUS > *cursor {
			*cursor = ev.TimeUS
		}
	}
}
