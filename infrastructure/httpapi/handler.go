package httpapi

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradegate/auth"
	"tradegate/domain"
	"tradegate/errors"
	"tradegate/observability"
	"tradegate/projection"
	"tradegate/repositories"
	"tradegate/runtime"
	"tradegate/services"
)

// Handler exposes the administrative surface of the gateway. Every route
// sits behind the admin bearer-token middleware; marketplace services are
// the only expected callers.
type Handler struct {
	registry   *runtime.ConnectionRegistry
	dispatcher *runtime.Dispatcher
	trades     services.ITradeService
	index      *repositories.TranscriptIndex
	monitoring *observability.MonitoringManager
	log        *slog.Logger
}

func NewHandler(
	registry *runtime.ConnectionRegistry,
	dispatcher *runtime.Dispatcher,
	trades services.ITradeService,
	index *repositories.TranscriptIndex,
	monitoring *observability.MonitoringManager,
	log *slog.Logger,
) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		trades:     trades,
		index:      index,
		monitoring: monitoring,
		log:        log,
	}
}

func (h *Handler) Router(tokens *auth.AdminTokens) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	admin := router.Group("/", auth.RequireAdmin(tokens))
	admin.GET("/isOnline/:username", h.isOnline)
	admin.POST("/broadcast", h.broadcast)
	admin.POST("/notification", h.notification)
	admin.POST("/trades", h.createTrade)
	admin.GET("/trades/:id/transcript", h.transcript)
	admin.GET("/transcripts/search", h.search)
	admin.GET("/stats", h.stats)
	return router
}

func (h *Handler) isOnline(c *gin.Context) {
	identity := domain.Identity(c.Param("username"))
	if !h.registry.IsPresent(identity) {
		c.JSON(http.StatusNotFound, gin.H{"username": identity, "online": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": identity, "online": true})
}

type broadcastRequest struct {
	Msg  string `json:"msg" binding:"required"`
	Date int64  `json:"date" binding:"required"`
}

// broadcast fans the message out to every live connection. The response
// never waits for the sends: offline users are simply skipped.
func (h *Handler) broadcast(c *gin.Context) {
	var request broadcastRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	at := time.UnixMilli(request.Date).UTC()
	go h.dispatcher.Broadcast(c.Copy(), request.Msg, at)
	c.Status(http.StatusOK)
}

type notificationRequest struct {
	Msg      string `json:"msg" binding:"required"`
	Date     int64  `json:"date" binding:"required"`
	Username string `json:"username" binding:"required"`
}

func (h *Handler) notification(c *gin.Context) {
	var request notificationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification := domain.Notification{Text: request.Msg, Date: time.UnixMilli(request.Date).UTC()}
	if err := h.dispatcher.Deliver(c, domain.Identity(request.Username), notification); err != nil {
		h.log.Error("Error while delivering notification", "username", request.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery failed"})
		return
	}
	c.Status(http.StatusOK)
}

type createTradeRequest struct {
	ProductRef string `json:"productRef" binding:"required"`
	Buyer      string `json:"buyer" binding:"required"`
	Seller     string `json:"seller" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
}

// createTrade records a buyer offer on behalf of the marketplace. The
// trade starts in the offered stage and the seller is notified, durably
// if offline.
func (h *Handler) createTrade(c *gin.Context) {
	var request createTradeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if request.Buyer == request.Seller {
		c.JSON(http.StatusBadRequest, gin.H{"error": "buyer and seller must differ"})
		return
	}

	trade, err := h.trades.Create(c, request.ProductRef,
		domain.Identity(request.Buyer), domain.Identity(request.Seller), request.Quantity)
	if err != nil {
		h.log.Error("Error while creating trade", "product", request.ProductRef, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trade creation failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": trade.ID, "stage": trade.Stage})
}

type transcriptBlock struct {
	Sender string `json:"sender"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
}

// transcript returns the merged reading view: consecutive chat entries
// of the same sender collapse into one block, control markers stay alone.
func (h *Handler) transcript(c *gin.Context) {
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade id"})
		return
	}

	if _, err := h.trades.Get(tradeID); err != nil {
		if stderrors.Is(err, errors.ErrTradeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown trade"})
			return
		}
		h.log.Error("Error while loading trade", "trade", tradeID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcript unavailable"})
		return
	}

	entries, err := h.trades.Transcript(tradeID)
	if err != nil {
		h.log.Error("Error while reading transcript", "trade", tradeID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcript unavailable"})
		return
	}

	blocks := projection.Blocks(entries)
	view := make([]transcriptBlock, 0, len(blocks))
	for _, b := range blocks {
		view = append(view, transcriptBlock{Sender: string(b.Sender), Kind: string(b.Kind), Text: b.Text})
	}
	c.JSON(http.StatusOK, gin.H{"trade": tradeID, "blocks": view})
}

func (h *Handler) search(c *gin.Context) {
	if h.index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search index disabled"})
		return
	}

	terms := c.Query("q")
	if terms == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q parameter"})
		return
	}

	page := 0
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		page = parsed
	}

	hits, total, err := h.index.Search(c, terms, c.Query("tradeId"), page)
	if err != nil {
		h.log.Error("Error while searching transcripts", "terms", terms, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "hits": hits})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitoring.GetLatest())
}
