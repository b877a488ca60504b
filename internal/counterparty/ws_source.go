package counterparty

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/observability"
)

// WSConfig configures WebSocket counterpart sessions.
type WSConfig struct {
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// WSDialer opens one WebSocket connection per negotiation.
type WSDialer struct {
	endpoint string
	config   WSConfig
	logger   logrus.FieldLogger
}

// NewWSDialer creates a dialer for endpoint. A nil config uses defaults.
func NewWSDialer(endpoint string, config *WSConfig, logger logrus.FieldLogger) *WSDialer {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WSDialer{endpoint: endpoint, config: cfg, logger: logger}
}

// Name returns the factory label used in metrics.
func (d *WSDialer) Name() string { return "ws" }

// Open dials the counterpart and returns a session bound to negotiationID.
func (d *WSDialer) Open(ctx context.Context, negotiationID string) (Session, error) {
	return DialWS(ctx, d.endpoint, negotiationID, &d.config, d.logger)
}

// WSSource exchanges offers with a counterpart over a single WebSocket
// connection. Replies are matched to requests by round number.
type WSSource struct {
	negotiationID string
	config        WSConfig
	logger        logrus.FieldLogger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	round  atomic.Int64

	// pending maps round to the channel waiting for its reply
	pending   map[int]chan offerResponse
	pendingMu sync.Mutex

	// readErr is set once the read loop stops on a connection error
	readErr   error
	readErrMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// DialWS connects to endpoint and starts the reader and ping loops.
func DialWS(ctx context.Context, endpoint, negotiationID string, config *WSConfig, logger logrus.FieldLogger) (*WSSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	s := &WSSource{
		negotiationID: negotiationID,
		config:        cfg,
		logger:        logger.WithField("negotiation_id", negotiationID),
		conn:          conn,
		pending:       make(map[int]chan offerResponse),
		done:          make(chan struct{}),
	}

	s.wg.Add(1)
	go s.readLoop()

	if cfg.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop()
	}

	return s, nil
}

// NextCounterOffer sends the bot offer and waits for the matching reply.
func (s *WSSource) NextCounterOffer(ctx context.Context, botOffer float64) (float64, error) {
	start := time.Now()
	offer, err := s.exchange(ctx, botOffer)
	observability.RecordCounterOffer("ws", time.Since(start).Seconds(), err)
	return offer, err
}

func (s *WSSource) exchange(ctx context.Context, botOffer float64) (float64, error) {
	if s.closed.Load() {
		return 0, fmt.Errorf("session closed")
	}
	if err := s.err(); err != nil {
		return 0, fmt.Errorf("connection lost: %w", err)
	}

	round := int(s.round.Add(1))
	replyCh := make(chan offerResponse, 1)
	s.pendingMu.Lock()
	s.pending[round] = replyCh
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, round)
		s.pendingMu.Unlock()
	}()
	if err := s.err(); err != nil {
		return 0, fmt.Errorf("connection lost: %w", err)
	}

	req := offerRequest{
		NegotiationID: s.negotiationID,
		Round:         round,
		BotOffer:      botOffer,
	}

	s.connMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	err := s.conn.WriteJSON(req)
	s.connMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("write offer: %w", err)
	}

	select {
	case resp, ok := <-replyCh:
		if !ok {
			if err := s.err(); err != nil {
				return 0, fmt.Errorf("connection lost: %w", err)
			}
			return 0, fmt.Errorf("session closed")
		}
		if resp.Error != "" {
			return 0, fmt.Errorf("counterpart error: %s", resp.Error)
		}
		if resp.CounterOffer == nil {
			return 0, fmt.Errorf("counterpart reply missing counter_offer")
		}
		return *resp.CounterOffer, nil
	case <-s.done:
		return 0, fmt.Errorf("session closed")
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (s *WSSource) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.connMu.Unlock()

	s.wg.Wait()
	return err
}

// readLoop reads replies and hands each to the waiting round.
func (s *WSSource) readLoop() {
	defer s.wg.Done()

	for !s.closed.Load() {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.logger.WithError(err).Warn("counterpart connection lost")
				s.fail(err)
			}
			return
		}

		var resp offerResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			s.logger.WithError(err).Warn("malformed counterpart message")
			continue
		}

		s.pendingMu.Lock()
		ch, ok := s.pending[resp.Round]
		s.pendingMu.Unlock()

		if !ok {
			s.logger.WithField("round", resp.Round).Debug("reply for unknown round dropped")
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}

// fail records the connection error and releases every waiting round.
func (s *WSSource) fail(err error) {
	s.readErrMu.Lock()
	s.readErr = err
	s.readErrMu.Unlock()

	s.pendingMu.Lock()
	for round, ch := range s.pending {
		close(ch)
		delete(s.pending, round)
	}
	s.pendingMu.Unlock()
}

func (s *WSSource) err() error {
	s.readErrMu.Lock()
	defer s.readErrMu.Unlock()
	return s.readErr
}

// pingLoop sends periodic ping frames to keep connection alive.
func (s *WSSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.WithError(err).Debug("ping failed")
			}
			s.connMu.Unlock()
		}
	}
}
