// Package air relays frames between boards connected over links, the
// way the air carries a transmission to every receiver tuned to its
// channel.
package air

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/radio/link"
	"github.com/robotalks/edas/pkg/radio/link/stream"
	ws "github.com/robotalks/edas/pkg/radio/link/websocket"
)

const untuned = -1

// Stats counts relayed traffic.
type Stats struct {
	Conns     int
	Frames    int
	Delivered int
	Errors    int
}

// Hub relays frames to the connections tuned to their channel. A
// connection never hears its own frames.
type Hub struct {
	lock  sync.Mutex
	conns map[*conn]struct{}
	stats Stats
}

type conn struct {
	rw      link.PacketReadWriter
	channel int

	writeLock sync.Mutex
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*conn]struct{})}
}

// Stats returns the counters.
func (h *Hub) Stats() Stats {
	h.lock.Lock()
	defer h.lock.Unlock()
	s := h.stats
	s.Conns = len(h.conns)
	return s
}

// Serve relays the packets of rw until it fails or ctx is done.
func (h *Hub) Serve(ctx context.Context, rw link.PacketReadWriter) error {
	c := &conn{rw: rw, channel: untuned}
	h.lock.Lock()
	h.conns[c] = struct{}{}
	h.lock.Unlock()
	defer func() {
		h.lock.Lock()
		delete(h.conns, c)
		h.lock.Unlock()
	}()

	serve := func() error {
		for {
			pkt, err := rw.ReadPacket()
			if err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return nil
				}
				return err
			}
			p, err := link.DecodePacket(pkt)
			if err != nil {
				glog.Warningf("air: %v", err)
				h.count(func(s *Stats) { s.Errors++ })
				continue
			}
			switch p.Op {
			case link.OpTune:
				h.lock.Lock()
				c.channel = p.Channel
				h.lock.Unlock()
				glog.V(2).Infof("air: connection tuned to %d", p.Channel)
			case link.OpFrame:
				h.relay(c, p, pkt)
			}
		}
	}
	if closer, ok := rw.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, serve)
	}
	return serve()
}

// Listeners counts the connections tuned to channel.
func (h *Hub) Listeners(channel int) int {
	h.lock.Lock()
	defer h.lock.Unlock()
	n := 0
	for c := range h.conns {
		if c.channel == channel {
			n++
		}
	}
	return n
}

func (h *Hub) relay(from *conn, p link.Packet, pkt []byte) {
	var targets []*conn
	h.lock.Lock()
	h.stats.Frames++
	for c := range h.conns {
		if c != from && c.channel == p.Channel {
			targets = append(targets, c)
		}
	}
	h.lock.Unlock()
	for _, c := range targets {
		c.writeLock.Lock()
		err := c.rw.WritePacket(pkt)
		c.writeLock.Unlock()
		if err != nil {
			glog.Warningf("air: relay on channel %d: %v", p.Channel, err)
			h.count(func(s *Stats) { s.Errors++ })
			continue
		}
		h.count(func(s *Stats) { s.Delivered++ })
	}
}

func (h *Hub) count(fn func(*Stats)) {
	h.lock.Lock()
	fn(&h.stats)
	h.lock.Unlock()
}

// ServeListener accepts stream connections until ctx is done.
func (h *Hub) ServeListener(ctx context.Context, ln net.Listener) error {
	return framework.RunWithContextCloser(ctx, ln, func() error {
		for {
			c, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			glog.Infof("air: connection from %s", c.RemoteAddr())
			go func() {
				if err := h.Serve(ctx, stream.New(c)); err != nil && ctx.Err() == nil {
					glog.Warningf("air: %s: %v", c.RemoteAddr(), err)
				}
				c.Close()
			}()
		}
	})
}

// WebsocketHandler serves websocket connections.
func (h *Hub) WebsocketHandler(ctx context.Context) http.Handler {
	return websocket.Handler(func(c *websocket.Conn) {
		glog.Infof("air: websocket from %s", c.Request().RemoteAddr)
		if err := h.Serve(ctx, ws.New(c)); err != nil && ctx.Err() == nil {
			glog.Warningf("air: websocket %s: %v", c.Request().RemoteAddr, err)
		}
	})
}
