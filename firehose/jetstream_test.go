// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package firehose

import (
	"context"
	"errors"
	"net"
	"net/url"
	"reflect"
	"testing"

	"github.com/gobwas/ws/wsutil"

	"github.com/tapestry-foundation/tapestry/api/bsky"
)

func TestJetstreamDeliversCommit(t *testing.T) {
	addr := streamServer(t, func(n int, query url.Values, conn net.Conn) {
		if got := query["wantedCollections"]; !reflect.DeepEqual(got, []string{"app.bsky.feed.post"}) {
			t.Errorf("wantedCollections = %v", got)
		}
		if got := query.Get("cursor"); got != "1725911162329308" {
			t.Errorf("cursor = %q", got)
		}
		frame := `{
			"did": "` + testDID + `",
			"time_us": 1725911162340000,
			"kind": "commit",
			"commit": {
				"rev": "3lh2ab3jdrw2p",
				"operation": "create",
				"collection": "app.bsky.feed.post",
				"rkey": "3lh2ab3jdrv2k",
				"record": {
					"$type": "app.bsky.feed.post",
					"text": "hello jetstream",
					"createdAt": "2026-02-03T04:05:06.000Z"
				},
				"cid": "bafyreidfayvfuwqa7qlnopdjiqrxzs6blmoeu4rujcjtnci5beludirz2a"
			}
		}`
		if err := wsutil.WriteServerText(conn, []byte(frame)); err != nil {
			t.Errorf("write frame: %v", err)
		}
	})

	var got *JetstreamEvent
	err := Jetstream(context.Background(), JetstreamConfig{
		Host:              addr,
		WantedCollections: []string{"app.bsky.feed.post"},
		Cursor:            1725911162329308,
		Handler: func(ctx context.Context, ev *JetstreamEvent) error {
			got = ev
			return errDone
		},
	})
	if !errors.Is(err, errDone) {
		t.Fatalf("Jetstream returned %v, want handler error", err)
	}
	if got.Did != testDID || got.Kind != "commit" || got.TimeUS != 1725911162340000 {
		t.Errorf("event = %+v", got)
	}
	if got.Commit == nil || got.Commit.Collection != "app.bsky.feed.post" || got.Commit.RKey != "3lh2ab3jdrv2k" {
		t.Fatalf("commit = %+v", got.Commit)
	}
	rec, err := got.Commit.DecodeRecord()
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	post, ok := rec.(*bsky.Post)
	if !ok {
		t.Fatalf("record decoded as %T, want *bsky.Post", rec)
	}
	if post.Text != "hello jetstream" {
		t.Errorf("post text = %q", post.Text)
	}
}

func TestJetstreamIdentityEvent(t *testing.T) {
	addr := streamServer(t, func(n int, query url.Values, conn net.Conn) {
		frame := `{
			"did": "` + testDID + `",
			"time_us": 1725516665234703,
			"kind": "identity",
			"identity": {
				"did": "` + testDID + `",
				"handle": "alice.example.com",
				"seq": 1409753013,
				"time": "2026-02-03T04:05:06.000Z"
			}
		}`
		if err := wsutil.WriteServerText(conn, []byte(frame)); err != nil {
			t.Errorf("write frame: %v", err)
		}
	})

	var got *JetstreamEvent
	err := Jetstream(context.Background(), JetstreamConfig{
		Host: addr,
		Handler: func(ctx context.Context, ev *JetstreamEvent) error {
			got = ev
			return errDone
		},
	})
	if !errors.Is(err, errDone) {
		t.Fatalf("Jetstream returned %v", err)
	}
	if got.Kind != "identity" || got.Identity == nil {
		t.Fatalf("event = %+v", got)
	}
	if got.Identity.Handle == nil || *got.Identity.Handle != "alice.example.com" {
		t.Errorf("identity = %+v", got.Identity)
	}
}

func TestJetstreamConfigErrors(t *testing.T) {
	err := Jetstream(context.Background(), JetstreamConfig{Host: "example.com"})
	if err == nil {
		t.Error("expected error without a handler")
	}

	err = Jetstream(context.Background(), JetstreamConfig{
		Host:     "example.com",
		Compress: true,
		Handler:  func(ctx context.Context, ev *JetstreamEvent) error { return nil },
	})
	if err == nil {
		t.Error("expected error for compressed mode without a dictionary")
	}
}

func TestJetstreamURL(t *testing.T) {
	got, err := jetstreamURL(JetstreamConfig{
		Host:              "jetstream2.us-east.bsky.network",
		WantedCollections: []string{"app.bsky.feed.post", "app.bsky.graph.follow"},
		WantedDIDs:        []string{testDID},
		Compress:          true,
	}, 1725911162329308)
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "wss" || u.Path != "/subscribe" {
		t.Errorf("url = %q", got)
	}
	query := u.Query()
	if got := query["wantedCollections"]; !reflect.DeepEqual(got, []string{"app.bsky.feed.post", "app.bsky.graph.follow"}) {
		t.Errorf("wantedCollections = %v", got)
	}
	if query.Get("cursor") != "1725911162329308" || query.Get("compress") != "true" {
		t.Errorf("query = %v", query)
	}
}
