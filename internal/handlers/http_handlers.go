package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"luckydraw/internal/draw"
	"luckydraw/internal/history"
	"luckydraw/internal/models"
	"luckydraw/internal/services"
	"luckydraw/internal/theme"
)

const (
	messageInternalError = "抽獎失敗，請稍後再試"
	messageBadRequest    = "請求格式錯誤"
)

// WSServer attaches websocket connections to a tenant.
type WSServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, tenantID string) error
}

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service   *services.LotteryService
	templates *template.Template
	ws        WSServer
}

// NewHTTPHandler creates a new HTTPHandler. ws may be nil, in which case
// /ws is not served.
func NewHTTPHandler(service *services.LotteryService, templates *template.Template, ws WSServer) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		templates: templates,
		ws:        ws,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type drawResponse struct {
	Record           models.DrawRecord    `json:"record"`
	SeedGenerated    bool                 `json:"seedGenerated"`
	Remaining        []models.Participant `json:"remaining"`
	ParticipantCount int                  `json:"participantCount"`
}

type participantsResponse struct {
	Participants []models.Participant `json:"participants"`
	Count        int                  `json:"count"`
}

type historyResponse struct {
	history.Page
	Prize  string   `json:"prize"`
	Prizes []string `json:"prizes"`
}

// renderPage is a helper to perform a two-step template rendering.
// It first executes the content template into a buffer, then executes the main
// layout template, passing the rendered content as a variable.
func (h *HTTPHandler) renderPage(c *gin.Context, pageData gin.H, contentTmpl string) {
	// Step 1: Render the specific page content into a buffer.
	buf := new(bytes.Buffer)
	if err := h.templates.ExecuteTemplate(buf, contentTmpl, pageData); err != nil {
		logger.Errorf("Error executing content template %s: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}

	// Step 2: Add the rendered content to the main data map and render the layout.
	pageData["PageContent"] = template.HTML(buf.String())

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(c.Writer, "layout.html", pageData); err != nil {
		logger.Errorf("Error executing layout template: %v", err)
		c.String(http.StatusInternalServerError, "Template rendering error")
	}
}

// RegisterPublicRoutes registers the routes that do not need a tenant.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/healthz", h.Healthz)
	router.POST("/replay", h.Replay)
}

// RegisterTenantRoutes registers the routes scoped to the caller's tenant.
func (h *HTTPHandler) RegisterTenantRoutes(router gin.IRouter) {
	router.GET("/", h.ShowIndex)
	router.POST("/draw", h.PerformDraw)
	router.GET("/participants", h.GetParticipants)
	router.POST("/participants", h.SetParticipants)
	router.POST("/upload-participants-csv", h.UploadParticipantsCSV)
	router.GET("/history", h.GetHistory)
	router.GET("/history/prizes", h.GetPrizeOptions)
	router.POST("/history/clear", h.ClearHistory)
	router.POST("/reset", h.ResetTenant)
	router.GET("/export-history-csv", h.ExportHistoryCSV)
	router.GET("/theme", h.GetTheme)
	router.POST("/theme/toggle", h.ToggleTheme)
	if h.ws != nil {
		router.GET("/ws", h.ServeWS)
	}
}

// Healthz reports liveness.
func (h *HTTPHandler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// ShowIndex renders the draw page.
func (h *HTTPHandler) ShowIndex(c *gin.Context) {
	ctx := c.Request.Context()
	tenant := tenantID(c)

	participants, err := h.service.GetParticipants(ctx, tenant)
	if err != nil {
		h.mapError(c, err)
		return
	}
	page, err := h.service.HistoryPage(ctx, tenant, history.FilterAll, 1)
	if err != nil {
		h.mapError(c, err)
		return
	}
	prizes, err := h.service.PrizeOptions(ctx, tenant)
	if err != nil {
		h.mapError(c, err)
		return
	}
	currentTheme, err := h.service.Theme(ctx, tenant, theme.SystemPrefersDark(c.Request))
	if err != nil {
		h.mapError(c, err)
		return
	}

	data := gin.H{
		"title":            "幸運抽獎",
		"Theme":            string(currentTheme),
		"ParticipantsText": draw.JoinParticipants(participants),
		"ParticipantCount": len(participants),
		"History":          page,
		"Prizes":           prizes,
		"FilterAll":        history.FilterAll,
		"RepeatHelp":       draw.RepeatHelp(false),
	}
	h.renderPage(c, data, "index.html")
}

// PerformDraw handles the draw form.
func (h *HTTPHandler) PerformDraw(c *gin.Context) {
	req := services.DrawRequest{
		Count:       c.PostForm("winnerCount"),
		Seed:        c.PostForm("seed"),
		Prize:       c.PostForm("prize"),
		AllowRepeat: formBool(c.PostForm("allowRepeat")),
	}
	if text, ok := c.GetPostForm("participants"); ok {
		req.Participants = &text
	}

	result, err := h.service.Draw(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, drawResponse{
		Record:           result.Record,
		SeedGenerated:    result.SeedGenerated,
		Remaining:        nonNil(result.Remaining),
		ParticipantCount: len(result.Remaining),
	})
}

// Replay recomputes the winners of a seed, to explain a past record.
func (h *HTTPHandler) Replay(c *gin.Context) {
	winners, err := h.service.Replay(c.PostForm("participants"), c.PostForm("seed"), c.PostForm("winnerCount"))
	if err != nil {
		h.mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}

// GetParticipants returns the live pool.
func (h *HTTPHandler) GetParticipants(c *gin.Context) {
	participants, err := h.service.GetParticipants(c.Request.Context(), tenantID(c))
	if err != nil {
		h.mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, participantsResponse{Participants: nonNil(participants), Count: len(participants)})
}

// SetParticipants replaces the pool with the submitted text.
func (h *HTTPHandler) SetParticipants(c *gin.Context) {
	participants, err := h.service.SetParticipants(c.Request.Context(), tenantID(c), c.PostForm("participants"))
	if err != nil {
		h.mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, participantsResponse{Participants: nonNil(participants), Count: len(participants)})
}

// UploadParticipantsCSV appends the first column of every CSV row to the pool.
func (h *HTTPHandler) UploadParticipantsCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("participantCSV")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Error retrieving file: " + err.Error()})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var names []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "Error reading CSV: " + err.Error()})
			return
		}

		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			logger.Infof("Skipping empty participant CSV record: %v", record)
			continue
		}
		names = append(names, strings.TrimSpace(strings.TrimPrefix(record[0], "\xef\xbb\xbf")))
	}

	participants, err := h.service.AddParticipants(c.Request.Context(), tenantID(c), names)
	if err != nil {
		h.mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, participantsResponse{Participants: nonNil(participants), Count: len(participants)})
}

// GetHistory returns one page of history filtered by prize.
func (h *HTTPHandler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()
	prize := c.DefaultQuery("prize", history.FilterAll)
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: messageBadRequest})
		return
	}

	result, err := h.service.HistoryPage(ctx, tenantID(c), prize, page)
	if err != nil {
		h.mapError(c, err)
		return
	}
	prizes, err := h.service.PrizeOptions(ctx, tenantID(c))
	if err != nil {
		h.mapError(c, err)
		return
	}

	if result.Records == nil {
		result.Records = []models.DrawRecord{}
	}
	c.JSON(http.StatusOK, historyResponse{Page: result, Prize: prize, Prizes: prizes})
}

// GetPrizeOptions lists the prize filter choices.
func (h *HTTPHandler) GetPrizeOptions(c *gin.Context) {
	prizes, err := h.service.PrizeOptions(c.Request.Context(), tenantID(c))
	if err != nil {
		h.mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prizes": prizes})
}

// ClearHistory empties the history; the form must carry confirm=true.
func (h *HTTPHandler) ClearHistory(c *gin.Context) {
	if err := h.service.ClearHistory(c.Request.Context(), tenantID(c), formBool(c.PostForm("confirm"))); err != nil {
		h.mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetTenant drops every stored value of the tenant: pool, history and theme.
// Like ClearHistory it needs confirm=true.
func (h *HTTPHandler) ResetTenant(c *gin.Context) {
	if !formBool(c.PostForm("confirm")) {
		h.mapError(c, services.ErrClearNotConfirmed)
		return
	}
	if err := h.service.ClearSession(c.Request.Context(), tenantID(c)); err != nil {
		h.mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportHistoryCSV handles the request to download the draw history as a CSV file.
func (h *HTTPHandler) ExportHistoryCSV(c *gin.Context) {
	records, err := h.service.GetHistory(c.Request.Context(), tenantID(c))
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=draw_history.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)

	if err := w.Write([]string{"品項", "時間", "中獎者", "亂數種子", "允許重複"}); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		return
	}

	for _, r := range records {
		row := []string{r.Prize, r.Date, strings.Join(r.Winners, "、"), r.Seed, yesNo(r.AllowRepeat)}
		if err := w.Write(row); err != nil {
			logger.Errorf("Error writing CSV row: %v", err)
			return
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
	}
}

// GetTheme returns the tenant's theme.
func (h *HTTPHandler) GetTheme(c *gin.Context) {
	t, err := h.service.Theme(c.Request.Context(), tenantID(c), theme.SystemPrefersDark(c.Request))
	if err != nil {
		h.mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": t})
}

// ToggleTheme flips the tenant's theme.
func (h *HTTPHandler) ToggleTheme(c *gin.Context) {
	t, err := h.service.ToggleTheme(c.Request.Context(), tenantID(c), theme.SystemPrefersDark(c.Request))
	if err != nil {
		h.mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": t})
}

// ServeWS upgrades to the websocket that receives winner reveals.
func (h *HTTPHandler) ServeWS(c *gin.Context) {
	if err := h.ws.ServeWS(c.Writer, c.Request, tenantID(c)); err != nil {
		logger.Warningf("WebSocket upgrade failed for tenant %s: %v", tenantID(c), err)
	}
}

func (h *HTTPHandler) mapError(c *gin.Context, err error) {
	switch {
	case draw.IsUserInputError(err):
		c.JSON(http.StatusBadRequest, errorResponse{Error: userMessage(err)})
	case errors.Is(err, services.ErrDrawInProgress):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrClearNotConfirmed):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.Errorf("internal error: request_id=%s tenant=%s: %v", c.GetString(ctxRequestID), tenantID(c), err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: messageInternalError})
	}
}

// userMessage strips wrapping so the user sees only the validation text.
func userMessage(err error) string {
	for _, target := range []error{draw.ErrInvalidCount, draw.ErrInsufficientParticipants, draw.ErrEmptyParticipantList} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

func nonNil(p []models.Participant) []models.Participant {
	if p == nil {
		return []models.Participant{}
	}
	return p
}
