package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"pixelfeed/models"
	"pixelfeed/store"
)

// The hub fans engine snapshots out to websocket clients. Room "feed"
// carries the ordered post list; room "post:<id>" carries one post's
// comments. Comment rooms open their engine subscription when the
// first client joins and release it when the last one leaves.

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
	Room string
}

type broadcastMsg struct {
	Room string
	Data []byte
}

type Hub struct {
	engine *Engine

	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	mu         sync.Mutex

	// per-room engine subscriptions, released when the room empties
	roomUnsubs map[string]store.Unsubscribe
	unsubFeed  store.Unsubscribe
}

func NewHub(engine *Engine) *Hub {
	return &Hub{
		engine:     engine,
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 16),
		done:       make(chan struct{}),
		roomUnsubs: make(map[string]store.Unsubscribe),
	}
}

func (h *Hub) Run() {
	unsubFeed := h.engine.SubscribePosts(func(posts []models.Post) {
		h.push("feed", postsPayload{Kind: "posts", Posts: posts})
	})
	h.mu.Lock()
	h.unsubFeed = unsubFeed
	h.mu.Unlock()

	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			first := h.rooms[c.Room] == nil || len(h.rooms[c.Room]) == 0
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			h.mu.Unlock()
			if first {
				h.openRoom(c.Room)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			empty := false
			if conns := h.rooms[c.Room]; conns != nil && conns[c] {
				delete(conns, c)
				close(c.Send)
				empty = len(conns) == 0
			}
			h.mu.Unlock()
			if empty {
				h.closeRoom(c.Room)
			}

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.Room] {
				select {
				case c.Send <- m.Data:
				default:
					close(c.Send)
					delete(h.rooms[m.Room], c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
	h.mu.Lock()
	unsubFeed := h.unsubFeed
	h.unsubFeed = nil
	unsubs := h.roomUnsubs
	h.roomUnsubs = make(map[string]store.Unsubscribe)
	h.mu.Unlock()
	if unsubFeed != nil {
		unsubFeed()
	}
	for _, unsub := range unsubs {
		unsub()
	}
}

type postsPayload struct {
	Kind  string        `json:"kind"`
	Posts []models.Post `json:"posts"`
}

type commentsPayload struct {
	Kind     string           `json:"kind"`
	PostID   string           `json:"postId"`
	Comments []models.Comment `json:"comments"`
}

func (h *Hub) push(room string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("hub marshal error: %v", err)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: data}:
	case <-h.done:
	}
}

// openRoom wires a comment room to its engine subscription. The
// "feed" room is fed by the hub-lifetime posts subscription instead.
func (h *Hub) openRoom(room string) {
	postID, ok := strings.CutPrefix(room, "post:")
	if !ok {
		return
	}
	unsub, err := h.engine.SubscribeComments(postID, func(comments []models.Comment) {
		h.push(room, commentsPayload{Kind: "comments", PostID: postID, Comments: comments})
	})
	if err != nil {
		log.Printf("comment room %s subscription failed: %v", room, err)
		return
	}
	h.mu.Lock()
	h.roomUnsubs[room] = unsub
	h.mu.Unlock()
}

func (h *Hub) closeRoom(room string) {
	h.mu.Lock()
	unsub := h.roomUnsubs[room]
	delete(h.roomUnsubs, room)
	h.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// --- websocket endpoint ---

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS handles GET /ws/feed and GET /ws/post/:postid
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room := "feed"
	if postID := ps.ByName("postid"); postID != "" {
		room = "post:" + postID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		Conn: conn,
		Send: make(chan []byte, 16),
		Room: room,
	}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump drains the connection until it drops, then unregisters.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
