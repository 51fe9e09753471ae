package main

import (
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"voltswap/config"
	"voltswap/gateway"
	"voltswap/handlers"
	"voltswap/models"
	"voltswap/services"
)

func main() {
	cfg := config.Load()

	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}

	seedData(db, logger)

	snapClient, coreClient := cfg.MidtransClients()
	pay := gateway.NewMidtrans(snapClient, coreClient, cfg.PaymentReturnURL)

	bookingSvc := &services.BookingService{DB: db, Log: logger, Cfg: cfg}
	paymentSvc := &services.PaymentService{DB: db, Log: logger, Cfg: cfg, Gateway: pay}
	subscriptionSvc := &services.SubscriptionService{DB: db, Log: logger}
	staffSvc := &services.StaffService{DB: db, Log: logger}
	rebalanceSvc := &services.RebalanceService{DB: db, Log: logger}

	authHandler := &handlers.AuthHandler{DB: db}
	stationHandler := &handlers.StationHandler{DB: db}
	bookingHandler := &handlers.BookingHandler{Svc: bookingSvc}
	paymentHandler := &handlers.PaymentHandler{Svc: paymentSvc}
	adminHandler := &handlers.AdminHandler{
		Booking:       bookingSvc,
		Subscriptions: subscriptionSvc,
		Rebalance:     rebalanceSvc,
		Staff:         staffSvc,
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("voltswap", store))

	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	r.GET("/stations", stationHandler.ListStations)
	r.GET("/stations/:id/slots", stationHandler.ListSlots)

	// Gateway notifications arrive unauthenticated; the settlement engine
	// re-verifies every order with the provider before mutating state.
	r.POST("/payments/webhook", paymentHandler.Webhook)

	staffOnly := handlers.RoleRequired(models.RoleStaff, models.RoleAdmin)

	authorized := r.Group("/")
	authorized.Use(handlers.AuthRequired())
	{
		authorized.POST("/bookings", bookingHandler.Create)
		authorized.POST("/bookings/:id/confirm", staffOnly, bookingHandler.Confirm)
		authorized.POST("/bookings/:id/reject", staffOnly, bookingHandler.Reject)
		authorized.POST("/payments", paymentHandler.Create)
		authorized.POST("/subscriptions", paymentHandler.PurchaseSubscription)
	}

	staff := r.Group("/staff")
	staff.Use(handlers.AuthRequired(), staffOnly)
	{
		staff.POST("/batteries/:id/status", adminHandler.UpdateBatteryStatus)
		staff.POST("/slots/:id/ready", adminHandler.MarkSlotReady)
		staff.POST("/absences", adminHandler.RecordAbsence)
	}

	admin := r.Group("/admin")
	admin.Use(handlers.AuthRequired(), handlers.RoleRequired(models.RoleAdmin))
	{
		admin.POST("/rebalance/plan", adminHandler.PlanRebalance)
		admin.POST("/rebalance/execute", adminHandler.ExecuteRebalance)
		admin.POST("/slots/reclaim", adminHandler.ReclaimSlots)
		admin.POST("/subscriptions/reset", adminHandler.ResetSubscriptions)
		admin.POST("/overrides", adminHandler.AssignOverride)
		admin.GET("/stations/:id/staff", adminHandler.AvailableStaff)
	}

	logger.Info("starting voltswap", zap.String("port", cfg.ServerPort))
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal(err)
	}
}

func initLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("failed to init logger:", err)
	}
	return logger
}

func seedData(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Station{}).Count(&count)
	if count > 0 {
		return
	}

	batteryType := models.BatteryType{Name: "NCM-60", CapacityWh: 1000}
	db.Create(&batteryType)

	station := models.Station{
		Name: "Central Station", Latitude: -6.2, Longitude: 106.8,
		ElectricityRate: 2000, ControllerAddr: "192.168.1.50", Active: true,
	}
	db.Create(&station)

	b1 := models.Battery{
		SerialNumber: "BT-001", Owner: models.OwnerStation, Status: models.BatteryAvailable,
		CapacityWh: 1000, CurrentChargeWh: 950, BatteryTypeID: batteryType.ID, StationID: &station.ID,
	}
	b2 := models.Battery{
		SerialNumber: "BT-002", Owner: models.OwnerStation, Status: models.BatteryAvailable,
		CapacityWh: 1000, CurrentChargeWh: 900, BatteryTypeID: batteryType.ID, StationID: &station.ID,
	}
	db.Create(&b1)
	db.Create(&b2)

	db.Create(&models.StationBatterySlot{StationID: station.ID, SlotNumber: 1, Status: models.SlotAvailable, BatteryID: &b1.ID})
	db.Create(&models.StationBatterySlot{StationID: station.ID, SlotNumber: 2, Status: models.SlotAvailable, BatteryID: &b2.ID})

	db.Create(&models.SubscriptionPlan{Name: "Basic", Price: 150000, SwapAmount: 10, DurationMonths: 1})

	logger.Info("seeded demo data", zap.Uint("station_id", station.ID))
}
