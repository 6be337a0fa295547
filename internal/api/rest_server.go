// Package api — административный HTTP API: состояние соединений, счетчики, метрики.
// Только чтение: вернуть отключенное соединение в Trusted отсюда нельзя.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/packetguard/internal/auth"
	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/middleware"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
)

// PlayerSource — снимки сессий. Реализуется network.Hub.
type PlayerSource interface {
	Statuses() []*player.Status
	Status(index int) (*player.Status, bool)
	Count() int
}

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	srv     *http.Server
	users   auth.UserRepository
	tokens  *auth.TokenIssuer
	groups  *permissions.Registry
	players PlayerSource
	metrics *ServerMetrics
	log     *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr    string
	Users   auth.UserRepository
	Tokens  *auth.TokenIssuer
	Groups  *permissions.Registry
	Players PlayerSource

	// Registry/Gatherer для HTTP-метрик и /metrics; nil — глобальный реестр.
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Groups == nil {
		cfg.Groups = permissions.DefaultRegistry()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// otelgin первым, чтобы логгер видел trace-id
	router.Use(otelgin.Middleware("packetguard-api"))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw := middleware.NewPrometheusMiddleware("packetguard_api", cfg.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:  router,
		users:   cfg.Users,
		tokens:  cfg.Tokens,
		groups:  cfg.Groups,
		players: cfg.Players,
		metrics: NewServerMetrics(),
		log:     logging.GetComponentLogger("api"),
	}
	rs.srv = &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rs.setupRoutes()
	return rs
}

// Handler — http.Handler маршрутизатора (для тестов и встраивания).
func (rs *RestServer) Handler() http.Handler { return rs.router }

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.POST("/auth/login", rs.handleLogin)

	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/players", rs.handlePlayers)
		protected.GET("/players/:index", rs.handlePlayer)
		protected.GET("/status", rs.handleStatus)
	}
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
	Group   string `json:"group,omitempty"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleLogin выдает токен учетной записи с правом доступа к API.
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Message: "Неверный формат запроса"})
		return
	}

	user, err := rs.users.GetUserByUsername(c.Request.Context(), req.Username)
	if errors.Is(err, auth.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, LoginResponse{Message: "Неверное имя пользователя или пароль"})
		return
	}
	if err != nil {
		rs.log.Error("Поиск учетной записи %q: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, LoginResponse{Message: "Внутренняя ошибка сервера"})
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, LoginResponse{Message: "Неверное имя пользователя или пароль"})
		return
	}
	if !rs.groups.Get(user.Group).HasPermission(permissions.AdminAPI) {
		rs.log.Warn("Вход в API без права %s: %s (%s)", permissions.AdminAPI, user.Username, user.Group)
		c.JSON(http.StatusForbidden, LoginResponse{Message: "Недостаточно прав доступа"})
		return
	}

	token, err := rs.tokens.Issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{Message: "Ошибка генерации токена"})
		return
	}
	_ = rs.users.TouchLogin(c.Request.Context(), user.ID)

	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Message: "Успешная авторизация",
		Group:   user.Group,
	})
}

func (rs *RestServer) handlePlayers(c *gin.Context) {
	statuses := rs.players.Statuses()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Активные соединения",
		Data: gin.H{
			"players": statuses,
			"total":   len(statuses),
		},
	})
}

func (rs *RestServer) handlePlayer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Некорректный индекс"})
		return
	}
	st, ok := rs.players.Status(index)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Message: "Соединение не найдено"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Соединение", Data: st})
}

// handleStatus — время работы, память и CPU процесса.
func (rs *RestServer) handleStatus(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()
	disabled := 0
	for _, st := range rs.players.Statuses() {
		if st.Tracker.Disabled {
			disabled++
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние сервера",
		Data: gin.H{
			"uptime":         rs.metrics.GetUptime(),
			"uptime_seconds": int64(rs.metrics.Uptime().Seconds()),
			"memory_mb":      memoryMB,
			"cpu_percent":    cpuPercent,
			"memory_details": rs.metrics.GetDetailedMemoryStats(),
			"connections":    rs.players.Count(),
			"disabled":       disabled,
			"server_time":    time.Now().Unix(),
		},
	})
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start блокируется до остановки сервера.
func (rs *RestServer) Start() error {
	rs.log.Info("Админ-API слушает %s", rs.srv.Addr)
	if err := rs.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.srv.Shutdown(ctx)
}
