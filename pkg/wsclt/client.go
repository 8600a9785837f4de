package wsclt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kairos/pkg/model"
)

const (
	MarketDataPath = "/ws/market-data"

	defaultPingInterval     = 25 * time.Second
	defaultHandshakeTimeout = 45 * time.Second
	defaultReadLimit        = 1 << 20
	defaultSubscriberBuffer = 256
	closeGracePeriod        = time.Second
)

var (
	ErrNotConnected        = errors.New("client is not connected")
	ErrClosed              = errors.New("client is closed")
	ErrReconnectExhausted  = errors.New("reconnect attempts exhausted")
	errMissingStreamTarget = errors.New("stream url is required")
)

// ReconnectPolicy bounds the reconnect loop. MaxAttempts of 0 retries forever.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
	MaxAttempts  int
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay: 5 * time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		Jitter:       0.2,
		MaxAttempts:  10,
	}
}

type Options struct {
	URL              string
	SkipVerify       bool
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	ReadLimit        int64
	SubscriberBuffer int
	Reconnect        ReconnectPolicy

	// MessageHandler runs on the reader goroutine before subscribers see the
	// message. It must not call Close, which waits for the reader goroutine
	// and would deadlock.
	MessageHandler func(model.MarketDataMessage)

	// ConnectHandler runs after every successful connect, reconnects
	// included, once the socket accepts writes. Use it to resend subscribe
	// messages. On reconnects it runs on the timer goroutine.
	ConnectHandler func()

	Logger zerolog.Logger
}

type Stats struct {
	Connected         bool
	ReconnectAttempts int
	ReconnectPending  bool
	Dropped           uint64
}

// session is one live socket with its reader and writer goroutines.
type session struct {
	ws        *websocket.Conn
	send      chan []byte
	stop      chan struct{}
	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = s.ws.Close()
	})
}

// Client keeps at most one market data socket and fans every inbound message
// out to all subscribers.
type Client struct {
	options *Options
	logger  zerolog.Logger
	dialer  *websocket.Dialer
	backoff *backoff.ExponentialBackOff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.Mutex
	sess             *session
	connecting       bool
	epoch            uint64
	reconnectTimer   *time.Timer
	reconnectPending bool
	attempts         int
	closed           bool
	err              error
	messageHandler   func(model.MarketDataMessage)
	connectHandler   func()

	subscribers map[int]chan model.MarketDataMessage
	nextSubID   int
	dropped     atomic.Uint64
}

// StreamURL joins the websocket base url with the market data path.
func StreamURL(base string) string {
	return strings.TrimRight(base, "/") + MarketDataPath
}

func NewClient(options *Options) *Client {
	opts := *options

	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}

	defaults := DefaultReconnectPolicy()
	if opts.Reconnect.InitialDelay <= 0 {
		opts.Reconnect.InitialDelay = defaults.InitialDelay
	}
	if opts.Reconnect.MaxDelay < opts.Reconnect.InitialDelay {
		opts.Reconnect.MaxDelay = max(defaults.MaxDelay, opts.Reconnect.InitialDelay)
	}
	if opts.Reconnect.Multiplier < 1 {
		opts.Reconnect.Multiplier = defaults.Multiplier
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	if opts.SkipVerify {
		dialer.TLSClientConfig = &tls.Config{RootCAs: nil, InsecureSkipVerify: true}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.Reconnect.InitialDelay
	b.MaxInterval = opts.Reconnect.MaxDelay
	b.Multiplier = opts.Reconnect.Multiplier
	b.RandomizationFactor = opts.Reconnect.Jitter
	b.Reset()

	ctx, cancel := context.WithCancel(context.Background())

	clt := &Client{
		options:        &opts,
		logger:         opts.Logger.With().Str("component", "wsclt").Str("url", opts.URL).Logger(),
		dialer:         dialer,
		backoff:        b,
		ctx:            ctx,
		cancel:         cancel,
		messageHandler: opts.MessageHandler,
		connectHandler: opts.ConnectHandler,
		subscribers:    make(map[int]chan model.MarketDataMessage),
	}

	return clt
}

// RegisterMessageHandler replaces Options.MessageHandler. The handler runs on
// the reader goroutine; calling Close from it deadlocks.
func (clt *Client) RegisterMessageHandler(handler func(model.MarketDataMessage)) {
	clt.mu.Lock()
	clt.messageHandler = handler
	clt.mu.Unlock()
}

// RegisterConnectHandler replaces Options.ConnectHandler.
func (clt *Client) RegisterConnectHandler(handler func()) {
	clt.mu.Lock()
	clt.connectHandler = handler
	clt.mu.Unlock()
}

// Connect opens the socket unless one is already open or being opened.
// A failed dial schedules a reconnect and returns the dial error, unless
// Disconnect or Close ran while dialing.
func (clt *Client) Connect(ctx context.Context) error {
	if clt.options.URL == "" {
		return errMissingStreamTarget
	}

	clt.mu.Lock()
	if clt.closed {
		clt.mu.Unlock()
		return ErrClosed
	}
	if clt.sess != nil || clt.connecting {
		clt.mu.Unlock()
		return nil
	}
	clt.connecting = true
	epoch := clt.epoch
	clt.mu.Unlock()

	ws, _, err := clt.dialer.DialContext(ctx, clt.options.URL, nil)

	clt.mu.Lock()
	clt.connecting = false

	if err != nil {
		stale := clt.closed || clt.epoch != epoch
		clt.mu.Unlock()
		clt.logger.Error().Err(err).Msg("connect to market data stream failed")
		if !stale {
			clt.scheduleReconnect()
		}
		return err
	}

	if clt.closed || clt.epoch != epoch {
		// Disconnect ran while dialing.
		clt.mu.Unlock()
		_ = ws.Close()
		return nil
	}

	ws.SetReadLimit(clt.options.ReadLimit)

	sess := &session{
		ws:   ws,
		send: make(chan []byte),
		stop: make(chan struct{}),
	}
	clt.sess = sess
	clt.attempts = 0
	clt.err = nil
	clt.backoff.Reset()
	onConnect := clt.connectHandler

	clt.wg.Add(2)
	clt.mu.Unlock()

	go clt.readMessage(sess)
	go clt.sendMessage(sess)

	clt.logger.Info().Msg("connected to market data stream")

	if onConnect != nil {
		onConnect()
	}
	return nil
}

func (clt *Client) readMessage(sess *session) {
	defer clt.wg.Done()

	for {
		_, message, err := sess.ws.ReadMessage()
		if err != nil {
			clt.handleReadError(sess, err)
			return
		}

		var msg model.MarketDataMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			clt.logger.Warn().Err(err).Int("bytes", len(message)).Msg("skip undecodable frame")
			continue
		}

		clt.broadcast(msg)
	}
}

func (clt *Client) sendMessage(sess *session) {
	defer clt.wg.Done()

	pingTicker := time.NewTicker(clt.options.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-pingTicker.C:
			deadline := time.Now().Add(clt.options.HandshakeTimeout)
			if err := sess.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				clt.logger.Warn().Err(err).Msg("ping failed")
				sess.close()
				return
			}
		case message := <-sess.send:
			if err := sess.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				clt.logger.Warn().Err(err).Msg("write failed")
				sess.close()
				return
			}
		}
	}
}

func (clt *Client) handleReadError(sess *session, err error) {
	sess.close()

	clt.mu.Lock()
	if clt.sess != sess {
		// Replaced or torn down on purpose.
		clt.mu.Unlock()
		return
	}
	clt.sess = nil
	clt.mu.Unlock()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		clt.logger.Info().Msg("disconnected from market data stream")
		return
	}

	clt.logger.Error().Err(err).Msg("market data stream error")
	clt.scheduleReconnect()
}

// scheduleReconnect arms at most one reconnect timer at a time.
func (clt *Client) scheduleReconnect() {
	clt.mu.Lock()
	defer clt.mu.Unlock()

	if clt.closed || clt.reconnectPending || clt.sess != nil || clt.connecting {
		return
	}

	if clt.options.Reconnect.MaxAttempts > 0 && clt.attempts >= clt.options.Reconnect.MaxAttempts {
		clt.err = ErrReconnectExhausted
		clt.logger.Error().Int("attempts", clt.attempts).Msg("giving up on market data stream")
		return
	}

	clt.attempts++
	delay := clt.backoff.NextBackOff()
	clt.reconnectPending = true
	epoch := clt.epoch

	clt.logger.Info().Int("attempt", clt.attempts).Dur("delay", delay).Msg("reconnect scheduled")

	clt.reconnectTimer = time.AfterFunc(delay, func() {
		clt.mu.Lock()
		if clt.epoch != epoch || !clt.reconnectPending {
			clt.mu.Unlock()
			return
		}
		clt.reconnectPending = false
		clt.reconnectTimer = nil
		clt.mu.Unlock()

		_ = clt.Connect(clt.ctx)
	})
}

// SendMessage writes msg to the socket. It never queues: without a socket it
// logs and returns ErrNotConnected.
func (clt *Client) SendMessage(msg model.MarketDataMessage) error {
	clt.mu.Lock()
	sess := clt.sess
	clt.mu.Unlock()

	if sess == nil {
		clt.logger.Error().Msg("not connected, call Connect first")
		return ErrNotConnected
	}

	dataBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case sess.send <- dataBytes:
		return nil
	case <-sess.stop:
		return ErrNotConnected
	}
}

// Subscribe returns a channel receiving every inbound message until cancel or
// Close. A subscriber that falls behind loses messages instead of blocking the stream.
func (clt *Client) Subscribe() (<-chan model.MarketDataMessage, func()) {
	clt.mu.Lock()
	defer clt.mu.Unlock()

	ch := make(chan model.MarketDataMessage, clt.options.SubscriberBuffer)
	if clt.closed {
		close(ch)
		return ch, func() {}
	}

	id := clt.nextSubID
	clt.nextSubID++
	clt.subscribers[id] = ch

	return ch, func() {
		clt.mu.Lock()
		defer clt.mu.Unlock()

		if sub, ok := clt.subscribers[id]; ok {
			delete(clt.subscribers, id)
			close(sub)
		}
	}
}

func (clt *Client) broadcast(msg model.MarketDataMessage) {
	clt.mu.Lock()
	handler := clt.messageHandler
	clt.mu.Unlock()

	if handler != nil {
		handler(msg)
	}

	clt.mu.Lock()
	defer clt.mu.Unlock()

	for _, ch := range clt.subscribers {
		select {
		case ch <- msg:
		default:
			clt.dropped.Add(1)
		}
	}
}

// Disconnect closes the socket and cancels a pending reconnect. It is safe to
// call when already disconnected.
func (clt *Client) Disconnect() {
	clt.mu.Lock()
	sess := clt.detachLocked()
	clt.mu.Unlock()

	clt.shutdown(sess)
}

// Close tears the client down for good and closes every subscriber channel.
func (clt *Client) Close() {
	clt.mu.Lock()
	if clt.closed {
		clt.mu.Unlock()
		return
	}
	clt.closed = true
	sess := clt.detachLocked()
	for id, ch := range clt.subscribers {
		delete(clt.subscribers, id)
		close(ch)
	}
	clt.mu.Unlock()

	clt.shutdown(sess)
	clt.cancel()
	clt.wg.Wait()
}

func (clt *Client) detachLocked() *session {
	clt.epoch++
	if clt.reconnectTimer != nil {
		clt.reconnectTimer.Stop()
		clt.reconnectTimer = nil
	}
	clt.reconnectPending = false
	clt.attempts = 0
	clt.backoff.Reset()

	sess := clt.sess
	clt.sess = nil
	return sess
}

func (clt *Client) shutdown(sess *session) {
	if sess == nil {
		return
	}

	data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = sess.ws.WriteControl(websocket.CloseMessage, data, time.Now().Add(closeGracePeriod))
	sess.close()

	clt.logger.Info().Msg("disconnected from market data stream")
}

func (clt *Client) IsConnected() bool {
	clt.mu.Lock()
	defer clt.mu.Unlock()

	return clt.sess != nil
}

// Err reports why the client stopped reconnecting, if it did.
func (clt *Client) Err() error {
	clt.mu.Lock()
	defer clt.mu.Unlock()

	return clt.err
}

func (clt *Client) Stats() Stats {
	clt.mu.Lock()
	defer clt.mu.Unlock()

	return Stats{
		Connected:         clt.sess != nil,
		ReconnectAttempts: clt.attempts,
		ReconnectPending:  clt.reconnectPending,
		Dropped:           clt.dropped.Load(),
	}
}
