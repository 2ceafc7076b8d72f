package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub pushes live pool state (grid occupancy, winner records) to websocket
// viewers. It is an output-only feed: client messages are drained and
// ignored. A nil hub is safe so services can run without one in tests.
type Hub struct {
	mu    sync.RWMutex
	store store.Store
	pools map[uint]map[*hubClient]bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (c *hubClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func NewHub(st store.Store) *Hub {
	return &Hub{store: st, pools: make(map[uint]map[*hubClient]bool)}
}

// HandleWebSocket upgrades a viewer connection for one pool and sends the
// current state immediately.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pool id"})
		return
	}
	poolID := uint(id)
	if _, err := h.store.GetPool(c.Request.Context(), poolID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pool not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("[ws] upgrade error: %v", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, 32)}
	h.mu.Lock()
	if h.pools[poolID] == nil {
		h.pools[poolID] = make(map[*hubClient]bool)
	}
	h.pools[poolID][client] = true
	h.mu.Unlock()

	go client.writePump()
	go h.readPump(poolID, client)

	h.BroadcastPool(context.Background(), poolID)
}

func (h *Hub) readPump(poolID uint, client *hubClient) {
	defer h.remove(poolID, client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(poolID uint, client *hubClient) {
	h.mu.Lock()
	if clients, ok := h.pools[poolID]; ok {
		delete(clients, client)
	}
	h.mu.Unlock()
	client.close()
}

type poolState struct {
	PoolID        uint                  `json:"pool_id"`
	Locked        bool                  `json:"locked"`
	OccupiedCount int                   `json:"occupied_count"`
	Cells         []models.Cell         `json:"cells"`
	Winners       []models.WinnerRecord `json:"winners"`
}

// BroadcastPool fans the pool's current state out to its viewers. Slow
// consumers get dropped messages rather than blocking a mutation path.
func (h *Hub) BroadcastPool(ctx context.Context, poolID uint) {
	if h == nil {
		return
	}
	h.mu.RLock()
	clients := make([]*hubClient, 0, len(h.pools[poolID]))
	for c := range h.pools[poolID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	p, err := h.store.GetPool(ctx, poolID)
	if err != nil {
		logger.Warnf("[ws] pool %d: broadcast skipped: %v", poolID, err)
		return
	}
	winners, err := h.store.ListWinners(ctx, poolID)
	if err != nil {
		logger.Warnf("[ws] pool %d: failed to load winners: %v", poolID, err)
	}

	b, err := json.Marshal(poolState{
		PoolID:        p.ID,
		Locked:        p.Locked,
		OccupiedCount: p.OccupiedCount,
		Cells:         p.Cells,
		Winners:       winners,
	})
	if err != nil {
		logger.Errorf("[ws] pool %d: marshal error: %v", poolID, err)
		return
	}

	for _, c := range clients {
		select {
		case c.send <- b:
		default:
			logger.Debugf("[ws] pool %d: dropping message to slow client", poolID)
		}
	}
}
