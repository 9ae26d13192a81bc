package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"

	"playhost_backend/internals/configs"
	database "playhost_backend/internals/databases"
	orderScheduler "playhost_backend/internals/features/orders/scheduler"
	paymentModel "playhost_backend/internals/features/payments/model"
	paymentService "playhost_backend/internals/features/payments/service"
	panelService "playhost_backend/internals/features/provisioning/service"
	helper "playhost_backend/internals/helpers"
	middlewares "playhost_backend/internals/middlewares"
	routes "playhost_backend/internals/route"
)

func main() {
	configs.LoadEnv()

	app := fiber.New(fiber.Config{
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return helper.FromFiberError(c, err)
		},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// Request-ID + timing
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		err := c.Next()
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s",
			id, c.Method(), c.OriginalURL(), c.Response().StatusCode(), time.Since(start))
		return err
	})

	middlewares.SetupMiddlewares(app)

	// DB connect + pool + schema
	database.ConnectDB()
	database.TunePool()
	database.RunMigrations()

	// External clients
	panelCfg := configs.LoadPanel()
	panel := panelService.NewPanelClient(panelCfg.BaseURL, panelCfg.APIKey)

	svc := paymentService.NewSettlementService(
		database.DB,
		configs.LoadMerchant(),
		configs.QRValidity(),
		panel,
	)

	bakongCfg := configs.LoadBakong()
	if bakongCfg.Token != "" {
		svc.Checkers[paymentModel.GatewayProviderBakong] =
			paymentService.NewBakongClient(bakongCfg.BaseURL, bakongCfg.Token)
	} else {
		log.Println("[WARN] BAKONG_TOKEN is empty, bakong polling disabled")
	}

	midtransCfg := configs.LoadMidtrans()
	if midtransCfg.ServerKey != "" {
		mg := paymentService.NewMidtransGateway(midtransCfg.ServerKey, midtransCfg.Production)
		svc.Midtrans = mg
		svc.Checkers[paymentModel.GatewayProviderMidtrans] = mg
	} else {
		log.Println("[WARN] MIDTRANS_SERVER_KEY is empty, midtrans rail disabled")
	}

	// Background loops after DB is ready
	svc.StartExpirySweep(1 * time.Minute)
	orderScheduler.NewRenewalScheduler(database.DB, nil, panel).Start(1 * time.Hour)

	routes.SetupRoutes(app, database.DB, svc)

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	go func() {
		log.Printf("Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown, then close the pool.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
