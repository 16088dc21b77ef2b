// Wordjack Blackjack Game
//
// Up to four teams share one screen. On each turn the active team picks a
// word from the list; its hidden value is added to the team's score, and a
// team whose score goes over the target is out. The last team standing wins,
// or, when the host finishes the game, the team closest to the target.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - Every connection to a game drives the same shared board
// - Word lists are loaded from a Google Sheets CSV export, the configured
//   --words-url, or any CSV URL when --allow-any-url is set
// - Short reveal delay after each confirmed pick, during which input is locked
// - Commands are rate limited per connection
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to open the board on another screen, backed by go-qrcode
// - JSON snapshot of a game at /path/:gameid/state

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"github.com/Seednode/wordjack/games/blackjack"
	"github.com/Seednode/wordjack/games/blackjack/sheets"
)

const (
	gameIDLength   = 8
	loadTimeout    = 15 * time.Second
	maxMessageSize = 16 << 10
	sendBuffer     = 16
)

var (
	errRateLimited    = errors.New("too many commands, slow down")
	errUnknownCommand = errors.New("unknown command")

	validGameID = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)
)

// Messages coming from clients
type ClientMessage struct {
	Type        string   `json:"type"`                   // "start", "select", "confirm", "skip", "target", "finish", "retry", "reset"
	Teams       []string `json:"teams,omitempty"`        // start
	TargetScore int      `json:"target_score,omitempty"` // start / target
	Source      string   `json:"source,omitempty"`       // start
	Word        string   `json:"word,omitempty"`         // select
}

// ConfigMessage tells a new client which defaults to put in the setup form.
type ConfigMessage struct {
	Type          string `json:"type"` // "config"
	GameID        string `json:"game_id"`
	TargetScore   int    `json:"target_score"`
	Source        string `json:"source"`
	MinTeams      int    `json:"min_teams"`
	MaxTeams      int    `json:"max_teams"`
	RevealDelayMS int64  `json:"reveal_delay_ms"`
}

// StateMessage carries the full board, broadcast after every change.
type StateMessage struct {
	Type string `json:"type"` // "state"
	blackjack.Snapshot
}

// ErrorMessage is sent only to the client whose command was rejected.
type ErrorMessage struct {
	Type       string `json:"type"` // "error"
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

type Client struct {
	conn    *websocket.Conn
	send    chan any
	id      string
	limiter *rate.Limiter
}

type command struct {
	client  *Client
	msg     ClientMessage
	limited bool
}

type loadResult struct {
	client *Client
	err    error
}

type Hub struct {
	id      string
	cfg     *Config
	session *blackjack.Session
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan command
	loads    chan loadResult
	updates  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, gameID string, provider blackjack.Provider) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	h := &Hub{
		id:         gameID,
		cfg:        cfg,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		loads:      make(chan loadResult),
		updates:    make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	h.session = blackjack.NewSession(blackjack.Options{
		Provider:    provider,
		RevealDelay: cfg.revealDelay,
		Logger:      cfg.logger.With().Str("game", gameID).Logger(),
		OnUpdate:    h.markUpdated,
	})

	return h
}

// markUpdated may be called from any goroutine, including reveal timers.
func (h *Hub) markUpdated() {
	select {
	case h.updates <- struct{}{}:
	default:
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true

			h.sendTo(c, h.configMessage())
			h.sendTo(c, h.stateMessage())

		case c := <-h.unreg:
			h.touch()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case cmd := <-h.commands:
			h.handleCommand(cmd)

		case res := <-h.loads:
			if res.err != nil && h.clients[res.client] {
				h.sendError(res.client, res.err, "")
			}

		case <-h.updates:
			h.broadcastState()

		case <-h.done:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				_ = c.conn.Close()
			}
			return
		}
	}
}

func (h *Hub) configMessage() ConfigMessage {
	return ConfigMessage{
		Type:          "config",
		GameID:        h.id,
		TargetScore:   h.cfg.targetScore,
		Source:        h.cfg.wordsURL,
		MinTeams:      blackjack.MinTeams,
		MaxTeams:      blackjack.MaxTeams,
		RevealDelayMS: h.cfg.revealDelay.Milliseconds(),
	}
}

func (h *Hub) stateMessage() StateMessage {
	return StateMessage{
		Type:     "state",
		Snapshot: h.session.Snapshot(),
	}
}

// sendTo drops clients whose buffer is full instead of blocking the hub.
func (h *Hub) sendTo(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastState() {
	msg := h.stateMessage()

	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, errUnknownCommand):
		return "unknown_command"
	case errors.Is(err, blackjack.ErrUnknownWord):
		return "unknown_word"
	case errors.Is(err, blackjack.ErrAlreadyConsumed):
		return "word_used"
	case errors.Is(err, blackjack.ErrInvalidTargetScore):
		return "invalid_target"
	case errors.Is(err, blackjack.ErrInvalidTeamCount):
		return "invalid_teams"
	case errors.Is(err, blackjack.ErrDuplicateTeam):
		return "duplicate_team"
	case errors.Is(err, blackjack.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, blackjack.ErrNotPlaying):
		return "not_playing"
	case errors.Is(err, blackjack.ErrInvalidMove):
		return "invalid_move"
	default:
		return "error"
	}
}

func (h *Hub) sendError(c *Client, err error, suggestion string) {
	h.sendTo(c, ErrorMessage{
		Type:       "error",
		Code:       errorCode(err),
		Message:    err.Error(),
		Suggestion: suggestion,
	})
}

// handleCommand runs on the hub goroutine. Word loading is the only slow
// command, so it runs on its own goroutine and reports back through h.loads.
func (h *Hub) handleCommand(cmd command) {
	c := cmd.client
	msg := cmd.msg

	if !h.clients[c] {
		return
	}

	h.touch()

	if cmd.limited {
		h.sendError(c, errRateLimited, "")
		return
	}

	var (
		err        error
		suggestion string
	)

	switch msg.Type {
	case "start":
		setup := blackjack.Setup{
			Teams:       msg.Teams,
			TargetScore: msg.TargetScore,
			Source:      msg.Source,
		}
		if strings.TrimSpace(setup.Source) == "" {
			setup.Source = h.cfg.wordsURL
		}
		if setup.TargetScore == 0 {
			setup.TargetScore = h.cfg.targetScore
		}

		logf(h.cfg, "GAMES: Starting %s with %d team(s) from %s", h.id, len(setup.Teams), setup.Source)

		go h.load(c, func(ctx context.Context) error {
			return h.session.Start(ctx, setup)
		})

		return

	case "retry":
		logf(h.cfg, "GAMES: Retrying word list for %s", h.id)

		go h.load(c, h.session.Retry)

		return

	case "select":
		err = h.session.SelectWord(msg.Word)
		if errors.Is(err, blackjack.ErrUnknownWord) {
			suggestion, _ = h.session.Suggest(msg.Word)
		}

	case "confirm":
		var entry blackjack.HistoryEntry
		entry, err = h.session.Confirm()
		if err == nil {
			logf(h.cfg, "GAMES: %q picked %q (%d) in %s, score %d", entry.Team, entry.Word, entry.Value, h.id, entry.Score)
		}

	case "skip":
		var entry blackjack.HistoryEntry
		entry, err = h.session.Skip()
		if err == nil {
			logf(h.cfg, "GAMES: %q skipped in %s", entry.Team, h.id)
		}

	case "target":
		err = h.session.SetTargetScore(msg.TargetScore)

	case "finish":
		err = h.session.Finish()

	case "reset":
		h.session.Reset()
		logf(h.cfg, "GAMES: Reset %s", h.id)

	default:
		err = fmt.Errorf("%w: %q", errUnknownCommand, msg.Type)
	}

	if err != nil {
		h.sendError(c, err, suggestion)
	}
}

func (h *Hub) load(c *Client, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(h.ctx, loadTimeout)
	defer cancel()

	err := fn(ctx)

	select {
	case h.loads <- loadResult{client: c, err: err}:
	case <-h.done:
	}
}

// stop ends the hub goroutine and disconnects all of its clients.
func (h *Hub) stop() {
	h.once.Do(func() {
		h.cancel()
		close(h.done)
		h.session.Reset()
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const playerCookieName = "wordjack_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated board.
type GameManager struct {
	cfg         *Config
	provider    blackjack.Provider
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newGameManager(cfg *Config, provider blackjack.Provider, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		cfg:         cfg,
		provider:    provider,
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gm.cfg, gameID, gm.provider)
	gm.hubs[gameID] = hub
	go hub.run()
	return hub
}

func (gm *GameManager) lookupHub(gameID string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	return hub, ok
}

func randomGameID(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, letters[int(b)%len(letters)])
				if len(out) == n {
					return string(out)
				}
			}
		}
	}
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	for {
		id := randomGameID(gameIDLength)

		if _, exists := gm.lookupHub(id); !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			if hub.idleSince().Before(cutoff) {
				delete(gm.hubs, id)
				go hub.stop()
				logf(gm.cfg, "GAMES: Reaped idle game %s", id)
			}
		}
		gm.mu.Unlock()
	}
}

func gameIDParam(w http.ResponseWriter, ps httprouter.Params) (string, bool) {
	gameID := ps.ByName("gameid")
	if !validGameID.MatchString(gameID) {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return "", false
	}
	return gameID, true
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID, ok := gameIDParam(w, ps)
		if !ok {
			return
		}

		playerID := getOrSetPlayerID(w, r)

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.logger.Warn().Err(err).Str("game", gameID).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			conn:    conn,
			send:    make(chan any, sendBuffer),
			id:      playerID,
			limiter: rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateBurst),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: Client %s connected to %s from %s", playerID, gameID, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		cmd := command{
			client:  c,
			msg:     msg,
			limited: !c.limiter.Allow(),
		}

		select {
		case h.commands <- cmd:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveState returns the current board as JSON, for scripts and debugging.
func serveState(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID, ok := gameIDParam(w, ps)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		hub, exists := gm.lookupHub(gameID)
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(ErrorMessage{Type: "error", Code: "not_found", Message: "no such game"})
			return
		}

		_ = json.NewEncoder(w).Encode(hub.stateMessage())
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, ok := gameIDParam(w, ps); !ok {
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed blackjack/index.html
var indexHTML []byte

//go:embed blackjack/app.css
var blackjackCSS []byte

//go:embed blackjack/app.js
var blackjackJS []byte

func serveEmbedded(cfg *Config, contentType string, data []byte, withCookie bool) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		if withCookie {
			_ = getOrSetPlayerID(w, r)
		}

		_, _ = w.Write(data)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

func newWordProvider(cfg *Config) blackjack.Provider {
	var allowed []string
	if cfg.wordsURL != "" {
		allowed = append(allowed, cfg.wordsURL)
	}

	return sheets.Auto{
		HTTP:        sheets.NewHTTPProvider(cfg.logger),
		File:        sheets.FileProvider{Logger: cfg.logger},
		AllowFiles:  cfg.allowFiles,
		AllowAnyURL: cfg.allowAnyURL,
		Allowed:     allowed,
	}
}

// registerBlackjackGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
//   - $path/:gameid/state    → JSON snapshot of that game
func registerBlackjackGame(cfg *Config, path string, mux *httprouter.Router) *GameManager {
	gm := newGameManager(cfg, newWordProvider(cfg), cfg.sessionTimeout)

	registerBlackjackRoutes(cfg, path, mux, gm)

	return gm
}

func registerBlackjackRoutes(cfg *Config, path string, mux *httprouter.Router, gm *GameManager) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", serveEmbedded(cfg, "text/html; charset=utf-8", indexHTML, true))

	mux.GET(cfg.prefix+"/assets/blackjack/app.css", serveEmbedded(cfg, "text/css; charset=utf-8", blackjackCSS, false))
	mux.GET(cfg.prefix+"/assets/blackjack/app.js", serveEmbedded(cfg, "application/javascript; charset=utf-8", blackjackJS, false))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	mux.GET(cfg.prefix+path+"/:gameid/state", serveState(cfg, gm))
}
